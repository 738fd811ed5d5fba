package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/domain/trace"
)

const traceColumns = `id, user_id, config_id, config_version, scenario_id, origin, task, actions, response, completed, error, started_at, finished_at`

func scanTrace(row scannable) (trace.ExecutionTrace, error) {
	var (
		t           trace.ExecutionTrace
		actionsJSON []byte
	)
	err := row.Scan(&t.ID, &t.UserID, &t.ConfigID, &t.ConfigVersion, &t.ScenarioID,
		&t.Origin, &t.Task, &actionsJSON, &t.Response, &t.Completed, &t.Error,
		&t.StartedAt, &t.FinishedAt)
	if err != nil {
		return trace.ExecutionTrace{}, err
	}
	if err := json.Unmarshal(actionsJSON, &t.Actions); err != nil {
		return trace.ExecutionTrace{}, fmt.Errorf("unmarshal actions: %w", err)
	}
	return t, nil
}

// CreateTrace persists the open trace, assigning ID and StartedAt.
func (s *Store) CreateTrace(ctx context.Context, t *trace.ExecutionTrace) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now().UTC()
	}
	actionsJSON, err := json.Marshal(orEmptyActions(t.Actions))
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO traces (id, user_id, config_id, config_version, scenario_id, origin, task, actions, response, completed, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.UserID, t.ConfigID, t.ConfigVersion, t.ScenarioID, string(t.Origin),
		t.Task, actionsJSON, t.Response, t.Completed, t.Error, t.StartedAt, nullTime(t.FinishedAt))
	if err != nil {
		return fmt.Errorf("create trace for %s: %w", t.UserID, err)
	}
	return nil
}

func (s *Store) GetTrace(ctx context.Context, id string) (*trace.ExecutionTrace, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+traceColumns+` FROM traces WHERE id = $1`, id)

	t, err := scanTrace(row)
	if err != nil {
		return nil, notFoundWrap(err, "get trace %s", id)
	}
	return &t, nil
}

// FinalizeTrace writes the completed action list and terminal outcome.
// Earlier actions are never rewritten elsewhere; this is the single point
// where a trace's stored action history is extended.
func (s *Store) FinalizeTrace(ctx context.Context, t *trace.ExecutionTrace) error {
	actionsJSON, err := json.Marshal(orEmptyActions(t.Actions))
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE traces SET actions = $2, response = $3, completed = $4, error = $5, finished_at = $6
		 WHERE id = $1`,
		t.ID, actionsJSON, t.Response, t.Completed, t.Error, nullTime(t.FinishedAt))
	return execExpectOne(tag, err, "finalize trace %s", t.ID)
}

func (s *Store) ListRecentTraces(ctx context.Context, userID string, origin trace.Origin, limit int) ([]trace.ExecutionTrace, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+traceColumns+` FROM traces
		 WHERE user_id = $1 AND origin = $2
		 ORDER BY started_at DESC LIMIT $3`,
		userID, string(origin), limit)
	if err != nil {
		return nil, fmt.Errorf("list traces for %s: %w", userID, err)
	}
	defer rows.Close()

	var traces []trace.ExecutionTrace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// orEmptyActions ensures JSON serialization produces [] instead of null.
func orEmptyActions(actions []trace.Action) []trace.Action {
	if actions == nil {
		return []trace.Action{}
	}
	return actions
}
