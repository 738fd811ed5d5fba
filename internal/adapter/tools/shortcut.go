package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

// ExecuteShortcut triggers an automation shortcut on the user's device.
// Device control is a sensitive side effect and requires approval.
type ExecuteShortcut struct {
	log *slog.Logger
}

func (t *ExecuteShortcut) Name() string { return "execute_shortcut" }

func (t *ExecuteShortcut) Description() string {
	return "Run a device automation shortcut, such as enabling wind-down mode."
}

func (t *ExecuteShortcut) RequiresApproval() bool { return true }

func (t *ExecuteShortcut) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"shortcut": {"type": "string", "description": "Name of the shortcut to run"}
		},
		"required": ["shortcut"]
	}`)
}

func (t *ExecuteShortcut) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Shortcut string `json:"shortcut"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.Shortcut == "" {
		return nil, fmt.Errorf("%w: shortcut name is required", tool.ErrExecution)
	}

	t.log.Info("shortcut executed", "tool", t.Name(), "shortcut", in.Shortcut)
	return encodeOutput(map[string]any{
		"status":   "executed",
		"shortcut": in.Shortcut,
	})
}
