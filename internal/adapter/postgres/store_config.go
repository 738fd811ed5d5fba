package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalis-ai/vitalis/internal/domain/agent"
)

const configColumns = `id, user_id, name, focus, instructions, model, tools, version, previous_version, active, degraded, created_at`

func scanConfig(row scannable) (agent.Config, error) {
	var c agent.Config
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Focus, &c.Instructions, &c.Model,
		&c.Tools, &c.Version, &c.PreviousVersion, &c.Active, &c.Degraded, &c.CreatedAt)
	return c, err
}

// CreateConfig inserts a new configuration, assigning ID and CreatedAt.
func (s *Store) CreateConfig(ctx context.Context, c *agent.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_configs (id, user_id, name, focus, instructions, model, tools, version, previous_version, active, degraded, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.UserID, c.Name, string(c.Focus), c.Instructions, c.Model, pgTextArray(c.Tools),
		c.Version, c.PreviousVersion, c.Active, c.Degraded, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create config for %s: %w", c.UserID, err)
	}
	return nil
}

func (s *Store) GetConfig(ctx context.Context, id string) (*agent.Config, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+configColumns+` FROM agent_configs WHERE id = $1`, id)

	c, err := scanConfig(row)
	if err != nil {
		return nil, notFoundWrap(err, "get config %s", id)
	}
	return &c, nil
}

func (s *Store) GetActiveConfig(ctx context.Context, userID string) (*agent.Config, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+configColumns+` FROM agent_configs WHERE user_id = $1 AND active`, userID)

	c, err := scanConfig(row)
	if err != nil {
		return nil, notFoundWrap(err, "active config for %s", userID)
	}
	return &c, nil
}

func (s *Store) ListConfigVersions(ctx context.Context, userID string) ([]agent.Config, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+configColumns+` FROM agent_configs WHERE user_id = $1 ORDER BY version ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list config versions for %s: %w", userID, err)
	}
	defer rows.Close()

	var configs []agent.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// MarkConfigDegraded flags a configuration deployed below the quality floor.
func (s *Store) MarkConfigDegraded(ctx context.Context, configID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_configs SET degraded = TRUE WHERE id = $1`, configID)
	return execExpectOne(tag, err, "mark config %s degraded", configID)
}

// ActivateConfig atomically swaps the user's active configuration: the
// previous active flag is cleared and the new one set in one transaction, so
// no reader ever observes zero or two active configs committed.
func (s *Store) ActivateConfig(ctx context.Context, userID, configID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE agent_configs SET active = FALSE WHERE user_id = $1 AND active`, userID); err != nil {
			return fmt.Errorf("deactivate configs for %s: %w", userID, err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE agent_configs SET active = TRUE WHERE id = $1 AND user_id = $2`, configID, userID)
		return execExpectOne(tag, err, "activate config %s", configID)
	})
}
