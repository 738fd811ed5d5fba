package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/domain/reward"
)

// CreateRewardSnapshot persists one monitoring observation. Snapshots are
// the source of truth for reward history; they are never backfilled.
func (s *Store) CreateRewardSnapshot(ctx context.Context, snap *reward.Snapshot) error {
	if err := snap.Vector.Validate(); err != nil {
		return err
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	vectorJSON, err := json.Marshal(snap.Vector)
	if err != nil {
		return fmt.Errorf("marshal reward vector: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reward_snapshots (id, user_id, config_id, config_version, vector, trace_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID, snap.UserID, snap.ConfigID, snap.ConfigVersion, vectorJSON, snap.TraceCount, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("create reward snapshot for %s: %w", snap.UserID, err)
	}
	return nil
}

// ListRewardSnapshots returns the most recent snapshots first.
func (s *Store) ListRewardSnapshots(ctx context.Context, userID string, limit int) ([]reward.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, config_id, config_version, vector, trace_count, created_at
		 FROM reward_snapshots WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reward snapshots for %s: %w", userID, err)
	}
	defer rows.Close()

	var snaps []reward.Snapshot
	for rows.Next() {
		var (
			snap       reward.Snapshot
			vectorJSON []byte
		)
		if err := rows.Scan(&snap.ID, &snap.UserID, &snap.ConfigID, &snap.ConfigVersion,
			&vectorJSON, &snap.TraceCount, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward snapshot: %w", err)
		}
		if err := json.Unmarshal(vectorJSON, &snap.Vector); err != nil {
			return nil, fmt.Errorf("unmarshal reward vector: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
