package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	otelx "github.com/vitalis-ai/vitalis/internal/adapter/otel"
	"github.com/vitalis-ai/vitalis/internal/adapter/ws"
	"github.com/vitalis-ai/vitalis/internal/domain"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/evaluation"
	"github.com/vitalis-ai/vitalis/internal/domain/event"
	"github.com/vitalis-ai/vitalis/internal/domain/reward"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
	"github.com/vitalis-ai/vitalis/internal/port/broadcast"
	"github.com/vitalis-ai/vitalis/internal/port/cache"
	"github.com/vitalis-ai/vitalis/internal/port/database"
	"github.com/vitalis-ai/vitalis/internal/port/eventstore"
	"github.com/vitalis-ai/vitalis/internal/port/messagequeue"
)

// AgentStatus is the aggregate view of a user's agent: lifecycle state, the
// active configuration, the latest reward observation and recent live runs.
type AgentStatus struct {
	UserID       string                 `json:"user_id"`
	State        agent.LifecycleState   `json:"state"`
	ActiveConfig *agent.Config          `json:"active_config,omitempty"`
	LatestReward *reward.Snapshot       `json:"latest_reward,omitempty"`
	RecentTraces []trace.ExecutionTrace `json:"recent_traces,omitempty"`
}

// DemoStep is one task of a scripted demo run.
type DemoStep struct {
	Task      string `json:"task"`
	TraceID   string `json:"trace_id"`
	Completed bool   `json:"completed"`
	ToolCalls int    `json:"tool_calls"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DemoReport summarizes a full demo: the scripted tasks plus the monitoring
// cycle that follows them.
type DemoReport struct {
	UserID  string           `json:"user_id"`
	Steps   []DemoStep       `json:"steps"`
	Reward  *reward.Snapshot `json:"reward,omitempty"`
	Revised bool             `json:"revised"`
}

// Orchestrator drives the per-user agent lifecycle end to end: candidate
// generation, evaluation, deployment, live execution and the demo script.
// It owns the lifecycle state machine; monitoring and revision run through
// the Monitor and Reviser it is wired with.
type Orchestrator struct {
	store       database.Store
	events      eventstore.Store
	queue       messagequeue.Queue
	hub         broadcast.Broadcaster
	cache       cache.Cache
	generator   *Generator
	harness     *Harness
	runner      *Runner
	monitor     *Monitor
	states      *StateTracker
	deployFloor float64
	cacheTTL    time.Duration
	metrics     *otelx.Metrics
	log         *slog.Logger
}

// NewOrchestrator wires the orchestrator. cache may be nil to disable the
// status cache; deployFloor is the winner mean below which deployment is
// flagged degraded.
func NewOrchestrator(
	store database.Store,
	events eventstore.Store,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	statusCache cache.Cache,
	generator *Generator,
	harness *Harness,
	runner *Runner,
	monitor *Monitor,
	states *StateTracker,
	deployFloor float64,
	cacheTTL time.Duration,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:       store,
		events:      events,
		queue:       queue,
		hub:         hub,
		cache:       statusCache,
		generator:   generator,
		harness:     harness,
		runner:      runner,
		monitor:     monitor,
		states:      states,
		deployFloor: deployFloor,
		cacheTTL:    cacheTTL,
		log:         log,
	}
}

// SetMetrics attaches metric instruments; nil disables instrumentation.
func (o *Orchestrator) SetMetrics(m *otelx.Metrics) { o.metrics = m }

// RestoreStates rebuilds the in-memory lifecycle map from storage: every
// user with an active configuration resumes as DEPLOYED. Call once at
// startup before serving traffic.
func (o *Orchestrator) RestoreStates(ctx context.Context) error {
	profiles, err := o.store.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("restore states: %w", err)
	}
	restored := 0
	for _, p := range profiles {
		if _, err := o.store.GetActiveConfig(ctx, p.ID); err != nil {
			continue
		}
		o.states.Restore(p.ID, agent.StateDeployed)
		restored++
	}
	o.log.Info("lifecycle states restored", "deployed", restored, "profiles", len(profiles))
	return nil
}

// Generate runs the full onboarding pipeline for the user: generate
// candidates, evaluate them against the scenario suite, and deploy the
// winner. A user already generating, evaluating or deployed gets
// ErrConflict; the caller must not retry until the state changes.
func (o *Orchestrator) Generate(ctx context.Context, userID string) (*agent.Config, error) {
	p, err := o.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlock := o.states.Lock(userID)
	defer unlock()

	if err := o.states.Transition(userID, agent.StateGenerating); err != nil {
		return nil, err
	}

	ctx, span := otelx.StartGenerationSpan(ctx, userID)
	defer span.End()

	if o.metrics != nil {
		o.metrics.GenerationsStarted.Add(ctx, 1)
	}
	o.broadcastGeneration(ctx, userID, agent.StateGenerating, "")
	appendEvent(ctx, o.events, event.AgentEvent{
		UserID:  userID,
		Type:    event.TypeGenerationStarted,
		Payload: mustJSON(map[string]string{"user_id": userID}),
	})

	version, err := o.nextVersion(ctx, userID)
	if err != nil {
		o.abortGeneration(ctx, userID, err)
		return nil, err
	}

	candidates, degraded := o.generator.Candidates(ctx, p, version)
	for i := range candidates {
		if err := o.store.CreateConfig(ctx, &candidates[i]); err != nil {
			err = fmt.Errorf("persist candidate: %w", err)
			o.abortGeneration(ctx, userID, err)
			return nil, err
		}
	}

	if err := o.states.Transition(userID, agent.StateEvaluating); err != nil {
		o.abortGeneration(ctx, userID, err)
		return nil, err
	}
	o.broadcastGeneration(ctx, userID, agent.StateEvaluating,
		fmt.Sprintf("%d candidates", len(candidates)))

	results, err := o.harness.Evaluate(ctx, p, candidates)
	if err != nil {
		err = fmt.Errorf("evaluate candidates: %w", err)
		o.abortGeneration(ctx, userID, err)
		return nil, err
	}
	winner, ok := o.harness.SelectWinner(results)
	if !ok {
		err = fmt.Errorf("no evaluation results for %s", userID)
		o.abortGeneration(ctx, userID, err)
		return nil, err
	}

	winning := findCandidate(candidates, winner.CandidateID)
	if winning == nil {
		err = fmt.Errorf("winner %s not among candidates", winner.CandidateID)
		o.abortGeneration(ctx, userID, err)
		return nil, err
	}

	// A winner below the quality floor, or a round built entirely from
	// fallback templates, still deploys so the user has an agent. The
	// version is flagged so the dashboard and the monitor know.
	if winner.MeanScore < o.deployFloor {
		degraded = true
	}
	if degraded {
		if err := o.store.MarkConfigDegraded(ctx, winning.ID); err != nil {
			o.log.Error("mark degraded failed", "config_id", winning.ID, "error", err)
		}
		winning.Degraded = true
		if o.metrics != nil {
			o.metrics.GenerationsDegraded.Add(ctx, 1)
		}
		appendEvent(ctx, o.events, event.AgentEvent{
			UserID:   userID,
			ConfigID: winning.ID,
			Type:     event.TypeGenerationDegraded,
			Payload:  mustJSON(map[string]any{"mean_score": winner.MeanScore, "floor": o.deployFloor}),
		})
		o.log.Warn("degraded deployment",
			"user_id", userID,
			"mean_score", winner.MeanScore,
			"floor", o.deployFloor,
		)
	}

	if err := o.store.ActivateConfig(ctx, userID, winning.ID); err != nil {
		err = fmt.Errorf("activate winner: %w", err)
		o.abortGeneration(ctx, userID, err)
		return nil, err
	}
	winning.Active = true

	if err := o.states.Transition(userID, agent.StateDeployed); err != nil {
		// The activation already committed; force the tracker in sync.
		o.states.Restore(userID, agent.StateDeployed)
	}
	o.invalidateStatus(ctx, userID)

	appendEvent(ctx, o.events, event.AgentEvent{
		UserID:   userID,
		ConfigID: winning.ID,
		Type:     event.TypeGenerationCompleted,
		Payload: mustJSON(map[string]any{
			"version":    winning.Version,
			"candidates": len(candidates),
			"mean_score": winner.MeanScore,
		}),
	})
	appendEvent(ctx, o.events, event.AgentEvent{
		UserID:   userID,
		ConfigID: winning.ID,
		Type:     event.TypeAgentDeployed,
		Payload:  mustJSON(winning),
	})
	publishJSON(ctx, o.queue, messagequeue.SubjectAgentDeployed, winning)
	if o.hub != nil {
		o.hub.BroadcastEvent(ctx, ws.EventAgentDeployed, map[string]any{
			"user_id":  userID,
			"version":  winning.Version,
			"focus":    winning.Focus,
			"degraded": winning.Degraded,
		})
	}
	if o.metrics != nil {
		o.metrics.AgentsDeployed.Add(ctx, 1)
	}

	o.log.Info("agent deployed",
		"user_id", userID,
		"config_id", winning.ID,
		"version", winning.Version,
		"focus", winning.Focus,
		"mean_score", winner.MeanScore,
		"degraded", winning.Degraded,
	)
	return winning, nil
}

// abortGeneration rolls the lifecycle back to NO_AGENT after a pipeline
// failure so the user can retry.
func (o *Orchestrator) abortGeneration(ctx context.Context, userID string, cause error) {
	o.states.Restore(userID, agent.StateNoAgent)
	o.broadcastGeneration(ctx, userID, agent.StateNoAgent, cause.Error())
	o.log.Error("generation aborted", "user_id", userID, "error", cause)
}

func (o *Orchestrator) broadcastGeneration(ctx context.Context, userID string, state agent.LifecycleState, detail string) {
	if o.hub == nil {
		return
	}
	o.hub.BroadcastEvent(ctx, ws.EventGenerationStatus, ws.GenerationStatusEvent{
		UserID: userID,
		State:  string(state),
		Detail: detail,
	})
}

// nextVersion returns one past the highest stored version for the user.
// Candidates of a round share the number; only the winner activates it.
func (o *Orchestrator) nextVersion(ctx context.Context, userID string) (int, error) {
	configs, err := o.store.ListConfigVersions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list versions: %w", err)
	}
	max := 0
	for i := range configs {
		if configs[i].Version > max {
			max = configs[i].Version
		}
	}
	return max + 1, nil
}

func findCandidate(candidates []agent.Config, id string) *agent.Config {
	for i := range candidates {
		if candidates[i].ID == id {
			return &candidates[i]
		}
	}
	return nil
}

// GetStatus returns the user's aggregate agent status. Unknown users and
// users who never generated an agent get ErrNotFound.
func (o *Orchestrator) GetStatus(ctx context.Context, userID string) (*AgentStatus, error) {
	if cached, ok := o.cachedStatus(ctx, userID); ok {
		return cached, nil
	}

	if _, err := o.store.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	state := o.states.State(userID)
	status := &AgentStatus{UserID: userID, State: state}

	active, err := o.store.GetActiveConfig(ctx, userID)
	switch {
	case err == nil:
		status.ActiveConfig = active
	case errors.Is(err, domain.ErrNotFound):
		if state == agent.StateNoAgent {
			return nil, fmt.Errorf("%w: no agent for user %s", domain.ErrNotFound, userID)
		}
	default:
		return nil, err
	}

	if snaps, err := o.store.ListRewardSnapshots(ctx, userID, 1); err == nil && len(snaps) > 0 {
		status.LatestReward = &snaps[0]
	}
	if traces, err := o.store.ListRecentTraces(ctx, userID, trace.OriginLive, 5); err == nil {
		status.RecentTraces = traces
	}

	o.storeStatus(ctx, userID, status)
	return status, nil
}

// RunTask executes one live task against the user's deployed agent.
func (o *Orchestrator) RunTask(ctx context.Context, userID, task string) (*trace.ExecutionTrace, error) {
	if task == "" {
		return nil, fmt.Errorf("%w: task is required", domain.ErrValidation)
	}
	state := o.states.State(userID)
	if !state.ServesTraffic() {
		return nil, fmt.Errorf("%w: agent is %s, not serving traffic", domain.ErrConflict, state)
	}

	cfg, err := o.store.GetActiveConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := o.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	tr, err := o.runner.RunTask(ctx, cfg, p, task, trace.OriginLive, "")
	o.invalidateStatus(ctx, userID)
	return tr, err
}

// Chat handles one conversational turn. It is a live run; the reply is the
// trace response.
func (o *Orchestrator) Chat(ctx context.Context, userID, message string) (*trace.ExecutionTrace, error) {
	return o.RunTask(ctx, userID, message)
}

// demoScript is the scripted day-in-the-life sequence. The purchase step
// exercises the approval gate end to end.
var demoScript = []string{
	"Good morning. Check my sleep and stress metrics and tell me how I'm doing today.",
	"My afternoon looks packed. Look at my calendar and protect some recovery time.",
	"Find a highly rated white noise machine under 60 dollars and buy it for me.",
	"Search for evidence-backed ways to wind down after a stressful workday.",
	"Send me an evening reminder with tonight's wind-down plan.",
}

// Demo runs the scripted task sequence against the deployed agent, then one
// monitoring cycle, so a single call shows execution, approvals, reward
// computation and a possible revision.
func (o *Orchestrator) Demo(ctx context.Context, userID string) (*DemoReport, error) {
	state := o.states.State(userID)
	if !state.ServesTraffic() {
		return nil, fmt.Errorf("%w: agent is %s, not serving traffic", domain.ErrConflict, state)
	}

	cfg, err := o.store.GetActiveConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := o.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &DemoReport{UserID: userID}
	for _, task := range demoScript {
		step := DemoStep{Task: task}
		tr, err := o.runner.RunTask(ctx, cfg, p, task, trace.OriginLive, "")
		if tr != nil {
			step.TraceID = tr.ID
			step.Completed = tr.Completed
			step.ToolCalls = tr.ToolCallCount()
			step.Response = tr.Response
			step.Error = tr.Error
		}
		if err != nil && step.Error == "" {
			step.Error = err.Error()
		}
		report.Steps = append(report.Steps, step)
		if ctx.Err() != nil {
			break
		}
	}

	snap, revised, err := o.monitor.CheckUser(ctx, userID)
	if err != nil {
		o.log.Error("demo monitoring cycle failed", "user_id", userID, "error", err)
	}
	report.Reward = snap
	report.Revised = revised

	o.invalidateStatus(ctx, userID)
	return report, nil
}

// ListVersions returns the user's full configuration history, oldest first.
func (o *Orchestrator) ListVersions(ctx context.Context, userID string) ([]agent.Config, error) {
	if _, err := o.store.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	return o.store.ListConfigVersions(ctx, userID)
}

// ListEvaluations returns the user's evaluation results, newest first.
func (o *Orchestrator) ListEvaluations(ctx context.Context, userID string) ([]evaluation.Result, error) {
	if _, err := o.store.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	return o.store.ListEvaluationResults(ctx, userID)
}

func statusCacheKey(userID string) string { return "status:" + userID }

func (o *Orchestrator) cachedStatus(ctx context.Context, userID string) (*AgentStatus, bool) {
	if o.cache == nil {
		return nil, false
	}
	data, ok, err := o.cache.Get(ctx, statusCacheKey(userID))
	if err != nil || !ok {
		return nil, false
	}
	var status AgentStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false
	}
	return &status, true
}

func (o *Orchestrator) storeStatus(ctx context.Context, userID string, status *AgentStatus) {
	if o.cache == nil || o.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := o.cache.Set(ctx, statusCacheKey(userID), data, o.cacheTTL); err != nil {
		o.log.Debug("status cache set failed", "user_id", userID, "error", err)
	}
}

func (o *Orchestrator) invalidateStatus(ctx context.Context, userID string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Delete(ctx, statusCacheKey(userID)); err != nil {
		o.log.Debug("status cache delete failed", "user_id", userID, "error", err)
	}
}
