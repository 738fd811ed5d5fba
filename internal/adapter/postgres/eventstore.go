package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalis-ai/vitalis/internal/domain/event"
)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new event into the agent_events table.
func (s *EventStore) Append(ctx context.Context, ev *event.AgentEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_events (id, user_id, trace_id, config_id, event_type, payload, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.UserID, ev.TraceID, ev.ConfigID, string(ev.Type), payload, ev.RequestID, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

const eventColumns = `id, user_id, trace_id, config_id, event_type, payload, request_id, created_at`

func scanEvent(row scannable, ev *event.AgentEvent) error {
	return row.Scan(&ev.ID, &ev.UserID, &ev.TraceID, &ev.ConfigID, &ev.Type,
		&ev.Payload, &ev.RequestID, &ev.CreatedAt)
}

// LoadByUser returns all events for the given user, oldest first.
func (s *EventStore) LoadByUser(ctx context.Context, userID string) ([]event.AgentEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM agent_events WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("load events by user %s: %w", userID, err)
	}
	defer rows.Close()

	var events []event.AgentEvent
	for rows.Next() {
		var ev event.AgentEvent
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LoadByTrace returns all events for the given trace, oldest first.
func (s *EventStore) LoadByTrace(ctx context.Context, traceID string) ([]event.AgentEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM agent_events WHERE trace_id = $1 ORDER BY created_at ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("load events by trace %s: %w", traceID, err)
	}
	defer rows.Close()

	var events []event.AgentEvent
	for rows.Next() {
		var ev event.AgentEvent
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
