// Package eventstore defines the port interface for the append-only agent
// event log.
package eventstore

import (
	"context"

	"github.com/vitalis-ai/vitalis/internal/domain/event"
)

// Store is the port interface for appending and loading agent events.
type Store interface {
	// Append persists a new event to the log.
	Append(ctx context.Context, ev *event.AgentEvent) error

	// LoadByUser returns all events for the given user, oldest first.
	LoadByUser(ctx context.Context, userID string) ([]event.AgentEvent, error)

	// LoadByTrace returns all events for the given trace, oldest first.
	LoadByTrace(ctx context.Context, traceID string) ([]event.AgentEvent, error)
}
