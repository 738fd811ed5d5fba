package tools

import (
	"context"
	"encoding/json"
	"log/slog"
)

// GetHealthMetrics reads the user's recent health readings. Read-only, no
// approval required.
type GetHealthMetrics struct {
	log *slog.Logger
}

func (t *GetHealthMetrics) Name() string { return "get_health_metrics" }

func (t *GetHealthMetrics) Description() string {
	return "Retrieve the user's recent health metrics: sleep, heart rate, steps and stress."
}

func (t *GetHealthMetrics) RequiresApproval() bool { return false }

func (t *GetHealthMetrics) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"metric": {"type": "string", "description": "Specific metric to read, or omit for all"}
		}
	}`)
}

func (t *GetHealthMetrics) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Metric string `json:"metric"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	metrics := map[string]any{
		"avg_sleep_hours":    6.2,
		"sleep_quality":      0.68,
		"resting_heart_rate": 64,
		"steps_today":        5400,
		"stress_level":       "moderate",
	}
	if in.Metric != "" {
		if v, ok := metrics[in.Metric]; ok {
			metrics = map[string]any{in.Metric: v}
		}
	}

	t.log.Debug("health metrics read", "tool", t.Name(), "metric", in.Metric)
	return encodeOutput(metrics)
}
