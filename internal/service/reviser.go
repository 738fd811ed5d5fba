package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	otelx "github.com/vitalis-ai/vitalis/internal/adapter/otel"
	"github.com/vitalis-ai/vitalis/internal/adapter/ws"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/event"
	"github.com/vitalis-ai/vitalis/internal/domain/reward"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
	"github.com/vitalis-ai/vitalis/internal/port/broadcast"
	"github.com/vitalis-ai/vitalis/internal/port/database"
	"github.com/vitalis-ai/vitalis/internal/port/eventstore"
	"github.com/vitalis-ai/vitalis/internal/port/messagequeue"
)

// Reviser performs RLAIF revision: it reads the weak reward dimensions,
// asks the meta-model for improved instructions, and deploys the new
// version atomically. Concurrent triggers for the same user coalesce into
// one revision.
type Reviser struct {
	store    database.Store
	events   eventstore.Store
	queue    messagequeue.Queue
	hub      broadcast.Broadcaster
	llm      ChatCompleter
	states   *StateTracker
	model    string
	dimFloor float64
	maxVers  int
	metrics  *otelx.Metrics
	sf       singleflight.Group
	log      *slog.Logger
}

// NewReviser creates a Reviser. maxVersions of 0 means unlimited.
func NewReviser(
	store database.Store,
	events eventstore.Store,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	completer ChatCompleter,
	states *StateTracker,
	model string,
	dimFloor float64,
	maxVersions int,
	log *slog.Logger,
) *Reviser {
	if log == nil {
		log = slog.Default()
	}
	return &Reviser{
		store:    store,
		events:   events,
		queue:    queue,
		hub:      hub,
		llm:      completer,
		states:   states,
		model:    model,
		dimFloor: dimFloor,
		maxVers:  maxVersions,
		log:      log,
	}
}

// SetMetrics attaches metric instruments; nil disables instrumentation.
func (r *Reviser) SetMetrics(m *otelx.Metrics) { r.metrics = m }

// Revise produces and deploys the next configuration version for the user.
// Only one revision per user runs at a time; concurrent callers share the
// in-flight result.
func (r *Reviser) Revise(ctx context.Context, userID string, snap *reward.Snapshot) (*agent.Config, error) {
	v, err, _ := r.sf.Do(userID, func() (any, error) {
		return r.revise(ctx, userID, snap)
	})
	if err != nil {
		return nil, err
	}
	return v.(*agent.Config), nil
}

func (r *Reviser) revise(ctx context.Context, userID string, snap *reward.Snapshot) (*agent.Config, error) {
	current, err := r.store.GetActiveConfig(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active config: %w", err)
	}
	if r.maxVers > 0 && current.Version >= r.maxVers {
		return nil, fmt.Errorf("version cap %d reached for %s", r.maxVers, userID)
	}

	if err := r.states.Transition(userID, agent.StateRevising); err != nil {
		return nil, err
	}

	ctx, span := otelx.StartRevisionSpan(ctx, userID, current.Version)
	defer span.End()

	weak := snap.Vector.WeakDimensions(r.dimFloor)
	evidence := r.traceEvidence(ctx, userID)

	instructions, err := r.reviseInstructions(ctx, current, snap, weak, evidence)
	if err != nil {
		r.log.Warn("meta-model revision failed, using deterministic amendment",
			"user_id", userID,
			"error", err,
		)
		instructions = amendInstructions(current.Instructions, weak)
	}

	next := &agent.Config{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            current.Name,
		Focus:           current.Focus,
		Instructions:    instructions,
		Model:           current.Model,
		Tools:           current.Tools,
		Version:         current.Version + 1,
		PreviousVersion: current.Version,
	}
	if err := r.store.CreateConfig(ctx, next); err != nil {
		r.restoreDeployed(userID)
		return nil, fmt.Errorf("create revised config: %w", err)
	}
	if err := r.store.ActivateConfig(ctx, userID, next.ID); err != nil {
		r.restoreDeployed(userID)
		return nil, fmt.Errorf("activate revised config: %w", err)
	}

	if err := r.states.Transition(userID, agent.StateDeployed); err != nil {
		// The swap already committed; force the tracker back in sync.
		r.states.Restore(userID, agent.StateDeployed)
	}

	appendEvent(ctx, r.events, event.AgentEvent{
		UserID:   userID,
		ConfigID: next.ID,
		Type:     event.TypeAgentRevised,
		Payload: mustJSON(map[string]any{
			"version":         next.Version,
			"weak_dimensions": weak,
			"reward_mean":     snap.Vector.Mean(),
		}),
	})
	publishJSON(ctx, r.queue, messagequeue.SubjectAgentRevised, next)
	if r.hub != nil {
		r.hub.BroadcastEvent(ctx, ws.EventAgentRevised, map[string]any{
			"user_id": userID,
			"version": next.Version,
		})
	}
	if r.metrics != nil {
		r.metrics.AgentsRevised.Add(ctx, 1)
	}

	r.log.Info("agent revised",
		"user_id", userID,
		"version", next.Version,
		"weak_dimensions", strings.Join(weak, ","),
	)
	return next, nil
}

func (r *Reviser) restoreDeployed(userID string) {
	r.states.Restore(userID, agent.StateDeployed)
}

// reviseInstructions asks the meta-model for improved instructions seeded
// with the current ones, the reward breakdown and recent trace evidence.
func (r *Reviser) reviseInstructions(
	ctx context.Context,
	current *agent.Config,
	snap *reward.Snapshot,
	weak []string,
	evidence string,
) (string, error) {
	var b strings.Builder
	b.WriteString("Current agent instructions:\n")
	b.WriteString(current.Instructions)
	b.WriteString("\n\nReward breakdown (0-1):\n")
	for _, dim := range reward.Dimensions {
		fmt.Fprintf(&b, "- %s: %.2f\n", dim, snap.Vector[dim])
	}
	fmt.Fprintf(&b, "\nUnderperforming dimensions: %s\n", strings.Join(weak, ", "))
	if evidence != "" {
		b.WriteString("\nRecent task evidence:\n")
		b.WriteString(evidence)
	}
	b.WriteString("\nRewrite the instructions to fix the weaknesses. Keep what works. " +
		"Respond with only the new instructions, no commentary.")

	resp, err := r.llm.ChatCompletion(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: "You improve wellness agent instructions based on measured performance."},
			{Role: "user", Content: b.String()},
		},
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.FirstMessage().Content)
	if out == "" {
		return "", fmt.Errorf("empty revision from meta-model")
	}
	return out, nil
}

// traceEvidence summarizes the user's recent live failures for the
// revision prompt.
func (r *Reviser) traceEvidence(ctx context.Context, userID string) string {
	traces, err := r.store.ListRecentTraces(ctx, userID, trace.OriginLive, 5)
	if err != nil {
		r.log.Warn("trace evidence unavailable", "user_id", userID, "error", err)
		return ""
	}
	var b strings.Builder
	for i := range traces {
		t := &traces[i]
		status := "ok"
		if !t.Completed {
			status = "failed: " + t.Error
		}
		fmt.Fprintf(&b, "- task %q: %s, %d tool calls\n", t.Task, status, t.ToolCallCount())
	}
	return b.String()
}

// amendInstructions appends targeted guidance per weak dimension, a
// deterministic fallback when the meta-model is down.
func amendInstructions(current string, weak []string) string {
	var b strings.Builder
	b.WriteString(current)
	b.WriteString("\n\nFocus areas from recent performance:\n")
	for _, dim := range weak {
		switch dim {
		case reward.DimTaskCompletion:
			b.WriteString("- Finish every task with a concrete answer; never stop after tool calls.\n")
		case reward.DimUserEngagement:
			b.WriteString("- Always close with a clear, personalized recommendation.\n")
		case reward.DimTimingAccuracy:
			b.WriteString("- Complete each step before moving on; avoid abandoned actions.\n")
		case reward.DimResourceEfficiency:
			b.WriteString("- Use the fewest tool calls that answer the task.\n")
		case reward.DimSafetyCompliance:
			b.WriteString("- Request approval before any purchase, message or device action.\n")
		}
	}
	if len(weak) == 0 {
		b.WriteString("- Keep responses specific to the user's goals and metrics.\n")
	}
	return b.String()
}
