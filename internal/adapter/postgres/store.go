package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalis-ai/vitalis/internal/domain/profile"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Profiles ---

const profileColumns = `id, name, phone, goals, work_hours, health, preferences`

func scanProfile(row scannable) (profile.UserProfile, error) {
	var (
		p           profile.UserProfile
		healthJSON  []byte
		prefsJSON   []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Goals, &p.WorkHours, &healthJSON, &prefsJSON); err != nil {
		return profile.UserProfile{}, err
	}
	if err := json.Unmarshal(healthJSON, &p.Health); err != nil {
		return profile.UserProfile{}, fmt.Errorf("unmarshal health: %w", err)
	}
	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &p.Preferences); err != nil {
			return profile.UserProfile{}, fmt.Errorf("unmarshal preferences: %w", err)
		}
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.UserProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, userID)

	p, err := scanProfile(row)
	if err != nil {
		return nil, notFoundWrap(err, "get profile %s", userID)
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]profile.UserProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM user_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []profile.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) UpsertProfile(ctx context.Context, p *profile.UserProfile) error {
	healthJSON, err := json.Marshal(p.Health)
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}
	prefsJSON, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_profiles (id, name, phone, goals, work_hours, health, preferences)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   phone = EXCLUDED.phone,
		   goals = EXCLUDED.goals,
		   work_hours = EXCLUDED.work_hours,
		   health = EXCLUDED.health,
		   preferences = EXCLUDED.preferences,
		   updated_at = now()`,
		p.ID, p.Name, p.Phone, pgTextArray(p.Goals), p.WorkHours, healthJSON, prefsJSON)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}
