package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalis-ai/vitalis/internal/adapter/postgres"
	"github.com/vitalis-ai/vitalis/internal/domain"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/approval"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/domain/reward"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()

	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

// createTestProfile inserts a profile with a unique ID and returns it.
func createTestProfile(t *testing.T, s *postgres.Store) *profile.UserProfile {
	t.Helper()

	p := &profile.UserProfile{
		ID:    "user-" + uuid.NewString(),
		Name:  "Test User",
		Goals: []string{"better_sleep"},
		Health: profile.HealthMetrics{
			AvgSleepHours: 6.5,
			SleepQuality:  0.7,
			StressLevel:   "moderate",
		},
		Preferences: map[string]string{profile.PrefMessagingChannel: "sms"},
	}
	if err := s.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	return p
}

func createTestConfig(t *testing.T, s *postgres.Store, userID string, version int) *agent.Config {
	t.Helper()

	c := &agent.Config{
		UserID:       userID,
		Name:         "Wellness Agent",
		Focus:        agent.FocusBalanced,
		Instructions: "Help the user sleep better.",
		Model:        "openai/gpt-4o-mini",
		Tools:        []string{"get_health_metrics", "send_message"},
		Version:      version,
	}
	if version > 1 {
		c.PreviousVersion = version - 1
	}
	if err := s.CreateConfig(context.Background(), c); err != nil {
		t.Fatalf("create config: %v", err)
	}
	return c
}

func TestProfileRoundTrip(t *testing.T) {
	s := setupStore(t)
	p := createTestProfile(t, s)

	got, err := s.GetProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.Name != p.Name || got.Health.StressLevel != "moderate" {
		t.Errorf("profile mismatch: %+v", got)
	}
	if got.Preferences[profile.PrefMessagingChannel] != "sms" {
		t.Errorf("preferences not preserved: %+v", got.Preferences)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetProfile(context.Background(), "no-such-user")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActivateConfigSwapsAtomically(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := createTestProfile(t, s)

	v1 := createTestConfig(t, s, p.ID, 1)
	if err := s.ActivateConfig(ctx, p.ID, v1.ID); err != nil {
		t.Fatalf("activate v1: %v", err)
	}

	v2 := createTestConfig(t, s, p.ID, 2)
	if err := s.ActivateConfig(ctx, p.ID, v2.ID); err != nil {
		t.Fatalf("activate v2: %v", err)
	}

	active, err := s.GetActiveConfig(ctx, p.ID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != v2.ID {
		t.Errorf("expected v2 active, got %s", active.ID)
	}

	versions, err := s.ListConfigVersions(ctx, p.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	activeCount := 0
	for _, c := range versions {
		if c.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("expected exactly 1 active config, got %d", activeCount)
	}
}

func TestTraceFinalize(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := createTestProfile(t, s)
	c := createTestConfig(t, s, p.ID, 1)

	tr := &trace.ExecutionTrace{
		UserID:        p.ID,
		ConfigID:      c.ID,
		ConfigVersion: 1,
		Origin:        trace.OriginLive,
		Task:          "help me sleep",
	}
	if err := s.CreateTrace(ctx, tr); err != nil {
		t.Fatalf("create trace: %v", err)
	}

	tr.Actions = []trace.Action{{
		ID:     uuid.NewString(),
		Tool:   "get_health_metrics",
		Status: trace.StatusCompleted,
	}}
	tr.Response = "Here is your sleep summary."
	tr.Completed = true
	if err := s.FinalizeTrace(ctx, tr); err != nil {
		t.Fatalf("finalize trace: %v", err)
	}

	got, err := s.GetTrace(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get trace: %v", err)
	}
	if !got.Completed || len(got.Actions) != 1 {
		t.Errorf("trace not finalized: %+v", got)
	}
}

func TestRewardSnapshotRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := createTestProfile(t, s)
	c := createTestConfig(t, s, p.ID, 1)

	snap := &reward.Snapshot{
		UserID:        p.ID,
		ConfigID:      c.ID,
		ConfigVersion: 1,
		Vector: reward.Vector{
			reward.DimTaskCompletion:     0.9,
			reward.DimUserEngagement:     0.8,
			reward.DimTimingAccuracy:     0.85,
			reward.DimResourceEfficiency: 0.95,
			reward.DimSafetyCompliance:   1.0,
		},
		TraceCount: 5,
	}
	if err := s.CreateRewardSnapshot(ctx, snap); err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	snaps, err := s.ListRewardSnapshots(ctx, p.ID, 10)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Vector[reward.DimSafetyCompliance] != 1.0 {
		t.Errorf("snapshot mismatch: %+v", snaps)
	}
}

func TestResolveApprovalTwiceConflicts(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := createTestProfile(t, s)
	c := createTestConfig(t, s, p.ID, 1)

	tr := &trace.ExecutionTrace{
		UserID: p.ID, ConfigID: c.ID, ConfigVersion: 1,
		Origin: trace.OriginLive, Task: "buy magnesium",
	}
	if err := s.CreateTrace(ctx, tr); err != nil {
		t.Fatalf("create trace: %v", err)
	}

	a := &approval.PendingApproval{
		UserID:   p.ID,
		TraceID:  tr.ID,
		ActionID: uuid.NewString(),
		Tool:     "commerce_buy",
	}
	if err := s.CreateApproval(ctx, a); err != nil {
		t.Fatalf("create approval: %v", err)
	}

	if err := s.ResolveApproval(ctx, a.ID, approval.StatusApproved); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	err := s.ResolveApproval(ctx, a.ID, approval.StatusDenied)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on second resolve, got %v", err)
	}
}
