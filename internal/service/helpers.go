// Package service implements the Vitalis use-cases on top of the domain
// entities and driven ports.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/vitalis-ai/vitalis/internal/domain/event"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/domain/scenario"
	"github.com/vitalis-ai/vitalis/internal/port/eventstore"
	"github.com/vitalis-ai/vitalis/internal/port/messagequeue"
)

// publishJSON marshals payload and publishes it to the queue. Publish
// failures are logged, never fatal: the database remains the source of truth
// and the queue is a best-effort live feed.
func publishJSON(ctx context.Context, queue messagequeue.Queue, subject string, payload any) {
	if queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish failed", "subject", subject, "error", err)
	}
}

// appendEvent records an agent event in the append-only log. Append failures
// are logged and swallowed for the same reason as publishJSON.
func appendEvent(ctx context.Context, events eventstore.Store, ev event.AgentEvent) {
	if events == nil {
		return
	}
	if len(ev.Payload) == 0 {
		ev.Payload = json.RawMessage("{}")
	}
	if err := events.Append(ctx, &ev); err != nil {
		slog.Error("append event failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

// mustJSON marshals v for event payloads, falling back to {} on error.
func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// extractJSON pulls the first JSON object out of an LLM response that may be
// wrapped in prose or a markdown fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// personaFor maps a profile to the scenario persona that selects
// profile-derived extra scenarios.
func personaFor(p *profile.UserProfile) string {
	switch p.Health.StressLevel {
	case "high", "very_high":
		return scenario.PersonaHighStress
	}
	return ""
}
