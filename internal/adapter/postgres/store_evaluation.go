package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/domain/evaluation"
)

// CreateEvaluationResult inserts one immutable candidate-vs-scenario result.
func (s *Store) CreateEvaluationResult(ctx context.Context, r *evaluation.Result) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO evaluation_results (id, user_id, candidate_id, scenario_id, score, tool_score, outcome_score, trace_id, tool_calls, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.UserID, r.CandidateID, r.ScenarioID, r.Score, r.ToolScore, r.OutcomeScore,
		r.TraceID, r.ToolCalls, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create evaluation result for %s: %w", r.UserID, err)
	}
	return nil
}

func (s *Store) ListEvaluationResults(ctx context.Context, userID string) ([]evaluation.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, candidate_id, scenario_id, score, tool_score, outcome_score, trace_id, tool_calls, created_at
		 FROM evaluation_results WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list evaluation results for %s: %w", userID, err)
	}
	defer rows.Close()

	var results []evaluation.Result
	for rows.Next() {
		var r evaluation.Result
		if err := rows.Scan(&r.ID, &r.UserID, &r.CandidateID, &r.ScenarioID, &r.Score,
			&r.ToolScore, &r.OutcomeScore, &r.TraceID, &r.ToolCalls, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evaluation result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
