// Package database defines the persistence port (interface) for Vitalis.
package database

import (
	"context"

	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/approval"
	"github.com/vitalis-ai/vitalis/internal/domain/evaluation"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/domain/reward"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
)

// Store is the port interface for all persistent state. Implementations must
// treat stored configurations, traces, results and snapshots as immutable
// history: updates are limited to the active-version pointer and approval
// resolution.
type Store interface {
	// Profiles
	GetProfile(ctx context.Context, userID string) (*profile.UserProfile, error)
	ListProfiles(ctx context.Context) ([]profile.UserProfile, error)
	UpsertProfile(ctx context.Context, p *profile.UserProfile) error

	// Agent configurations. CreateConfig assigns ID and CreatedAt.
	// ActivateConfig atomically clears the user's previous active flag and
	// sets the new one in a single transaction. MarkConfigDegraded flags a
	// deployment that fell below the quality floor; the flag is the only
	// mutable column besides the active pointer.
	CreateConfig(ctx context.Context, c *agent.Config) error
	GetConfig(ctx context.Context, id string) (*agent.Config, error)
	GetActiveConfig(ctx context.Context, userID string) (*agent.Config, error)
	ListConfigVersions(ctx context.Context, userID string) ([]agent.Config, error)
	ActivateConfig(ctx context.Context, userID, configID string) error
	MarkConfigDegraded(ctx context.Context, configID string) error

	// Execution traces. CreateTrace persists the open trace; FinalizeTrace
	// writes the completed action list and terminal outcome.
	CreateTrace(ctx context.Context, t *trace.ExecutionTrace) error
	GetTrace(ctx context.Context, id string) (*trace.ExecutionTrace, error)
	FinalizeTrace(ctx context.Context, t *trace.ExecutionTrace) error
	ListRecentTraces(ctx context.Context, userID string, origin trace.Origin, limit int) ([]trace.ExecutionTrace, error)

	// Evaluation results
	CreateEvaluationResult(ctx context.Context, r *evaluation.Result) error
	ListEvaluationResults(ctx context.Context, userID string) ([]evaluation.Result, error)

	// Reward snapshots: real persisted history, one row per monitoring cycle.
	CreateRewardSnapshot(ctx context.Context, s *reward.Snapshot) error
	ListRewardSnapshots(ctx context.Context, userID string, limit int) ([]reward.Snapshot, error)

	// Approvals
	CreateApproval(ctx context.Context, a *approval.PendingApproval) error
	GetApproval(ctx context.Context, id string) (*approval.PendingApproval, error)
	ListPendingApprovals(ctx context.Context) ([]approval.PendingApproval, error)
	ResolveApproval(ctx context.Context, id string, status approval.Status) error
}
