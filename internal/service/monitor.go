package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/vitalis-ai/vitalis/internal/adapter/otel"
	"github.com/vitalis-ai/vitalis/internal/adapter/ws"
	"github.com/vitalis-ai/vitalis/internal/domain"
	"github.com/vitalis-ai/vitalis/internal/domain/reward"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
	"github.com/vitalis-ai/vitalis/internal/port/broadcast"
	"github.com/vitalis-ai/vitalis/internal/port/database"
)

// Monitor computes the rolling reward vector from recent live traces,
// persists one snapshot per cycle, and hands revision triggers to the
// Reviser. Reward history is only ever what was actually observed and
// stored; nothing is synthesized retroactively.
type Monitor struct {
	store     database.Store
	reviser   *Reviser
	hub       broadcast.Broadcaster
	window    int
	meanFloor float64
	dimFloor  float64
	interval  time.Duration
	metrics   *otelx.Metrics
	log       *slog.Logger
}

// NewMonitor creates a Monitor with the given rolling window and floors.
func NewMonitor(
	store database.Store,
	reviser *Reviser,
	hub broadcast.Broadcaster,
	window int,
	meanFloor, dimFloor float64,
	interval time.Duration,
	log *slog.Logger,
) *Monitor {
	if window < 1 {
		window = 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		store:     store,
		reviser:   reviser,
		hub:       hub,
		window:    window,
		meanFloor: meanFloor,
		dimFloor:  dimFloor,
		interval:  interval,
		log:       log,
	}
}

// SetMetrics attaches metric instruments; nil disables instrumentation.
func (m *Monitor) SetMetrics(mt *otelx.Metrics) { m.metrics = mt }

// Run executes monitoring cycles on the configured interval until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.interval <= 0 {
		m.interval = time.Minute
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

func (m *Monitor) checkAll(ctx context.Context) {
	profiles, err := m.store.ListProfiles(ctx)
	if err != nil {
		m.log.Error("monitor list profiles failed", "error", err)
		return
	}
	for _, p := range profiles {
		if _, _, err := m.CheckUser(ctx, p.ID); err != nil {
			m.log.Error("monitor cycle failed", "user_id", p.ID, "error", err)
		}
	}
}

// CheckUser runs one monitoring cycle for the user: compute the vector over
// the window, persist the snapshot, and revise when the trigger fires.
// Users without a deployed agent or without live traces are skipped with a
// nil snapshot.
func (m *Monitor) CheckUser(ctx context.Context, userID string) (*reward.Snapshot, bool, error) {
	cfg, err := m.store.GetActiveConfig(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	traces, err := m.store.ListRecentTraces(ctx, userID, trace.OriginLive, m.window)
	if err != nil {
		return nil, false, err
	}
	if len(traces) == 0 {
		return nil, false, nil
	}

	vector := ComputeRewardVector(traces)
	snap := &reward.Snapshot{
		UserID:        userID,
		ConfigID:      cfg.ID,
		ConfigVersion: cfg.Version,
		Vector:        vector,
		TraceCount:    len(traces),
	}
	if err := m.store.CreateRewardSnapshot(ctx, snap); err != nil {
		return nil, false, err
	}

	mean := vector.Mean()
	if m.hub != nil {
		m.hub.BroadcastEvent(ctx, ws.EventRewardUpdate, ws.RewardUpdateEvent{
			UserID:        userID,
			ConfigVersion: cfg.Version,
			Vector:        vector,
			Mean:          mean,
		})
	}
	if m.metrics != nil {
		m.metrics.RewardMean.Record(ctx, mean)
	}

	m.log.Info("reward snapshot",
		"user_id", userID,
		"version", cfg.Version,
		"mean", mean,
		"traces", len(traces),
	)

	if !vector.ShouldRevise(m.meanFloor, m.dimFloor) {
		return snap, false, nil
	}

	m.log.Info("revision triggered",
		"user_id", userID,
		"mean", mean,
		"weak", vector.WeakDimensions(m.dimFloor),
	)
	if _, err := m.reviser.Revise(ctx, userID, snap); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}

// ComputeRewardVector derives the five reward dimensions from observed
// traces. An empty window yields the zero vector; callers decide whether an
// empty window is meaningful (CheckUser skips it).
func ComputeRewardVector(traces []trace.ExecutionTrace) reward.Vector {
	if len(traces) == 0 {
		v := reward.Vector{}
		for _, dim := range reward.Dimensions {
			v[dim] = 0
		}
		return v
	}

	var (
		completed    int
		responded    int
		actionsDone  int
		actionsTotal int
		toolCalls    int
		violations   int
	)

	for i := range traces {
		t := &traces[i]
		if t.Completed {
			completed++
		}
		if t.Response != "" {
			responded++
		}
		toolCalls += t.ToolCallCount()
		for j := range t.Actions {
			a := &t.Actions[j]
			actionsTotal++
			if a.Status == trace.StatusCompleted {
				actionsDone++
			}
			// A permission rejection means the agent attempted a tool its
			// configuration does not grant. Denied actions are compliant:
			// the gate held and the agent respected the decision.
			if a.Status == trace.StatusFailed && strings.Contains(a.Reasoning, "not permitted") {
				violations++
			}
		}
	}

	n := float64(len(traces))
	v := reward.Vector{
		reward.DimTaskCompletion: float64(completed) / n,
		reward.DimUserEngagement: float64(responded) / n,
	}

	if actionsTotal > 0 {
		v[reward.DimTimingAccuracy] = float64(actionsDone) / float64(actionsTotal)
	} else {
		v[reward.DimTimingAccuracy] = 1
	}

	// Efficiency decays as average tool usage grows past a small budget.
	avgCalls := float64(toolCalls) / n
	eff := 1 - 0.1*(avgCalls-2)
	if avgCalls <= 2 {
		eff = 1
	}
	if eff < 0 {
		eff = 0
	}
	v[reward.DimResourceEfficiency] = eff

	if actionsTotal > 0 {
		v[reward.DimSafetyCompliance] = 1 - float64(violations)/float64(actionsTotal)
	} else {
		v[reward.DimSafetyCompliance] = 1
	}
	return v
}
