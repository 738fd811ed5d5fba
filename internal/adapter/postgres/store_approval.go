package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/domain"
	"github.com/vitalis-ai/vitalis/internal/domain/approval"
)

const approvalColumns = `id, user_id, trace_id, action_id, tool, description, payload, status, created_at, resolved_at`

func scanApproval(row scannable) (approval.PendingApproval, error) {
	var a approval.PendingApproval
	err := row.Scan(&a.ID, &a.UserID, &a.TraceID, &a.ActionID, &a.Tool, &a.Description,
		&a.Payload, &a.Status, &a.CreatedAt, &a.ResolvedAt)
	return a, err
}

// CreateApproval inserts a pending approval, assigning ID and CreatedAt.
func (s *Store) CreateApproval(ctx context.Context, a *approval.PendingApproval) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = approval.StatusPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO approvals (id, user_id, trace_id, action_id, tool, description, payload, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.UserID, a.TraceID, a.ActionID, a.Tool, a.Description, a.Payload,
		string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create approval for %s: %w", a.UserID, err)
	}
	return nil
}

func (s *Store) GetApproval(ctx context.Context, id string) (*approval.PendingApproval, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id)

	a, err := scanApproval(row)
	if err != nil {
		return nil, notFoundWrap(err, "get approval %s", id)
	}
	return &a, nil
}

func (s *Store) ListPendingApprovals(ctx context.Context) ([]approval.PendingApproval, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	defer rows.Close()

	var approvals []approval.PendingApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// ResolveApproval moves a pending approval to a terminal status. Resolving an
// already-resolved approval returns domain.ErrConflict.
func (s *Store) ResolveApproval(ctx context.Context, id string, status approval.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE approvals SET status = $2, resolved_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("resolve approval %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already resolved.
		if _, getErr := s.GetApproval(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("resolve approval %s: %w", id, domain.ErrConflict)
	}
	return nil
}
