package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	otelx "github.com/vitalis-ai/vitalis/internal/adapter/otel"
	"github.com/vitalis-ai/vitalis/internal/adapter/ws"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/approval"
	"github.com/vitalis-ai/vitalis/internal/domain/event"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
	"github.com/vitalis-ai/vitalis/internal/port/broadcast"
	"github.com/vitalis-ai/vitalis/internal/port/database"
	"github.com/vitalis-ai/vitalis/internal/port/eventstore"
	"github.com/vitalis-ai/vitalis/internal/port/messagequeue"
	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

// stepLimitError marks a run terminated by the action loop bound. It is a
// scored terminal failure of the trace, never a transport error.
const stepLimitError = "step limit exceeded"

// ChatCompleter is the LLM dependency of the runner, small enough to fake
// in tests.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// parameterized is the optional schema hook a registered tool may implement.
type parameterized interface {
	Parameters() json.RawMessage
}

// Runner executes one task against one agent configuration: a bounded
// model/tool loop that records every step as an action on the trace.
type Runner struct {
	store     database.Store
	events    eventstore.Store
	queue     messagequeue.Queue
	hub       broadcast.Broadcaster
	registry  *tool.Registry
	llm       ChatCompleter
	approvals *ApprovalService
	maxSteps  int
	metrics   *otelx.Metrics
	log       *slog.Logger
}

// NewRunner creates a Runner. maxSteps bounds the model/tool loop per task.
func NewRunner(
	store database.Store,
	events eventstore.Store,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	registry *tool.Registry,
	completer ChatCompleter,
	approvals *ApprovalService,
	maxSteps int,
	log *slog.Logger,
) *Runner {
	if maxSteps < 1 {
		maxSteps = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:     store,
		events:    events,
		queue:     queue,
		hub:       hub,
		registry:  registry,
		llm:       completer,
		approvals: approvals,
		maxSteps:  maxSteps,
		log:       log,
	}
}

// SetMetrics attaches metric instruments; nil disables instrumentation.
func (r *Runner) SetMetrics(m *otelx.Metrics) { r.metrics = m }

// RunTask executes task under cfg and returns the finalized trace. Execution
// failures inside the run (tool errors, denials, the step limit) terminate
// the trace, not the call; only storage and LLM transport errors are
// returned alongside the partial trace.
func (r *Runner) RunTask(
	ctx context.Context,
	cfg *agent.Config,
	p *profile.UserProfile,
	task string,
	origin trace.Origin,
	scenarioID string,
) (*trace.ExecutionTrace, error) {
	tr := &trace.ExecutionTrace{
		ID:            uuid.NewString(),
		UserID:        p.ID,
		ConfigID:      cfg.ID,
		ConfigVersion: cfg.Version,
		ScenarioID:    scenarioID,
		Origin:        origin,
		Task:          task,
		StartedAt:     time.Now().UTC(),
	}
	if err := r.store.CreateTrace(ctx, tr); err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}

	ctx, span := otelx.StartRunSpan(ctx, tr.ID, p.ID, cfg.Version)
	defer span.End()

	appendEvent(ctx, r.events, event.AgentEvent{
		UserID:   p.ID,
		TraceID:  tr.ID,
		ConfigID: cfg.ID,
		Type:     event.TypeRunStarted,
		Payload:  mustJSON(map[string]string{"task": task, "origin": string(origin)}),
	})

	messages := []llm.Message{
		{Role: "system", Content: r.systemPrompt(cfg, p)},
		{Role: "user", Content: task},
	}
	toolDefs := r.toolDefs(cfg)

	var runErr error
	completed := false

loop:
	for step := 0; step < r.maxSteps; step++ {
		resp, err := r.llm.ChatCompletion(ctx, llm.ChatRequest{
			Model:    cfg.Model,
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			runErr = fmt.Errorf("chat completion: %w", err)
			tr.Error = err.Error()
			break loop
		}

		msg := resp.FirstMessage()
		if len(msg.ToolCalls) == 0 {
			tr.Response = msg.Content
			completed = true
			break loop
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			observation := r.executeAction(ctx, tr, cfg, call, origin)
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    observation,
			})
		}
	}

	tr.Completed = completed
	if !completed && runErr == nil && tr.Error == "" {
		tr.Error = stepLimitError
	}
	now := time.Now().UTC()
	tr.FinishedAt = &now

	if err := r.store.FinalizeTrace(ctx, tr); err != nil {
		r.log.Error("finalize trace failed", "trace_id", tr.ID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	appendEvent(ctx, r.events, event.AgentEvent{
		UserID:   p.ID,
		TraceID:  tr.ID,
		ConfigID: cfg.ID,
		Type:     event.TypeRunCompleted,
		Payload:  mustJSON(map[string]any{"completed": tr.Completed, "error": tr.Error}),
	})
	if r.hub != nil && origin == trace.OriginLive {
		r.hub.BroadcastEvent(ctx, ws.EventAgentResponse, ws.AgentResponseEvent{
			UserID:   p.ID,
			TraceID:  tr.ID,
			Response: tr.Response,
		})
	}
	r.recordRunMetrics(ctx, tr)

	r.log.Info("run finished",
		"trace_id", tr.ID,
		"user_id", p.ID,
		"origin", origin,
		"completed", tr.Completed,
		"tool_calls", tr.ToolCallCount(),
		"duration", time.Since(tr.StartedAt),
	)
	return tr, runErr
}

// executeAction drives one tool call through the action state machine and
// returns the observation text handed back to the model.
func (r *Runner) executeAction(
	ctx context.Context,
	tr *trace.ExecutionTrace,
	cfg *agent.Config,
	call llm.ToolCall,
	origin trace.Origin,
) string {
	action := trace.Action{
		ID:        uuid.NewString(),
		Tool:      call.Function.Name,
		Input:     json.RawMessage(call.Function.Arguments),
		Status:    trace.StatusProposed,
		Timestamp: time.Now().UTC(),
	}
	r.noteAction(ctx, tr, &action, event.TypeActionProposed)

	// A tool outside the configuration's allow-list is rejected before the
	// state machine advances; the model sees a failed observation.
	if !cfg.PermitsTool(action.Tool) {
		r.failAction(ctx, tr, &action, fmt.Sprintf("tool %q not permitted by configuration", action.Tool))
		tr.Actions = append(tr.Actions, action)
		return "error: " + action.Reasoning
	}
	handler, ok := r.registry.Get(action.Tool)
	if !ok {
		r.failAction(ctx, tr, &action, fmt.Sprintf("tool %q not registered", action.Tool))
		tr.Actions = append(tr.Actions, action)
		return "error: " + action.Reasoning
	}

	// Sensitive side effects suspend at the approval gate on live runs.
	// Evaluation runs execute against mock backends and skip the gate.
	if handler.RequiresApproval() && origin == trace.OriginLive {
		action.Status = trace.StatusAwaitingApproval
		pending := &approval.PendingApproval{
			UserID:      tr.UserID,
			TraceID:     tr.ID,
			ActionID:    action.ID,
			Tool:        action.Tool,
			Description: fmt.Sprintf("%s wants to run %s", cfg.Name, action.Tool),
			Payload:     action.Input,
		}
		if err := r.approvals.Request(ctx, pending); err != nil {
			r.failAction(ctx, tr, &action, "approval request failed: "+err.Error())
			tr.Actions = append(tr.Actions, action)
			return "error: " + action.Reasoning
		}

		switch r.approvals.Wait(ctx, pending.ID) {
		case approval.StatusApproved:
			action.Status = trace.StatusApproved
		default:
			action.Status = trace.StatusDenied
			action.Reasoning = "denied by user"
			r.noteAction(ctx, tr, &action, event.TypeActionFailed)
			tr.Actions = append(tr.Actions, action)
			return "the user denied this action; do not retry it"
		}
	}

	action.Status = trace.StatusExecuting
	r.noteAction(ctx, tr, &action, event.TypeActionExecuting)

	toolCtx, toolSpan := otelx.StartToolCallSpan(ctx, action.ID, action.Tool)
	output, err := handler.Invoke(toolCtx, action.Input)
	toolSpan.End()
	if r.metrics != nil {
		r.metrics.ToolCalls.Add(ctx, 1)
	}

	if err != nil {
		r.failAction(ctx, tr, &action, err.Error())
		tr.Actions = append(tr.Actions, action)
		return "error: " + action.Reasoning
	}

	action.Status = trace.StatusCompleted
	action.Output = output
	r.noteAction(ctx, tr, &action, event.TypeActionCompleted)
	tr.Actions = append(tr.Actions, action)
	return string(output)
}

// noteAction records an action transition in the event log, the queue, and
// the live dashboard feed.
func (r *Runner) noteAction(ctx context.Context, tr *trace.ExecutionTrace, action *trace.Action, evType event.Type) {
	appendEvent(ctx, r.events, event.AgentEvent{
		UserID:  tr.UserID,
		TraceID: tr.ID,
		Type:    evType,
		Payload: mustJSON(action),
	})
	publishJSON(ctx, r.queue, messagequeue.SubjectActionTransition, map[string]string{
		"user_id":   tr.UserID,
		"trace_id":  tr.ID,
		"action_id": action.ID,
		"tool":      action.Tool,
		"status":    string(action.Status),
	})
	if r.hub != nil && tr.Origin == trace.OriginLive {
		r.hub.BroadcastEvent(ctx, ws.EventActionStatus, ws.ActionStatusEvent{
			UserID:   tr.UserID,
			TraceID:  tr.ID,
			ActionID: action.ID,
			Tool:     action.Tool,
			Status:   string(action.Status),
		})
	}
}

func (r *Runner) failAction(ctx context.Context, tr *trace.ExecutionTrace, action *trace.Action, reason string) {
	action.Status = trace.StatusFailed
	action.Reasoning = reason
	r.noteAction(ctx, tr, action, event.TypeActionFailed)
}

// systemPrompt renders the configuration's instructions with the profile
// context the agent personalizes against.
func (r *Runner) systemPrompt(cfg *agent.Config, p *profile.UserProfile) string {
	var b strings.Builder
	b.WriteString(cfg.Instructions)
	b.WriteString("\n\nUser profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Wellness goals: %s\n", strings.Join(p.Goals, ", "))
	if p.WorkHours != "" {
		fmt.Fprintf(&b, "- Work hours: %s\n", p.WorkHours)
	}
	fmt.Fprintf(&b, "- Average sleep: %.1fh (quality %.2f), stress: %s\n",
		p.Health.AvgSleepHours, p.Health.SleepQuality, p.Health.StressLevel)
	if ch := p.Preference(profile.PrefMessagingChannel); ch != "" {
		fmt.Fprintf(&b, "- Preferred messaging channel: %s\n", ch)
	}
	if style := p.Preference(profile.PrefCommunication); style != "" {
		fmt.Fprintf(&b, "- Communication style: %s\n", style)
	}
	return b.String()
}

// toolDefs declares the configuration's permitted tools to the model.
func (r *Runner) toolDefs(cfg *agent.Config) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(cfg.Tools))
	for _, name := range cfg.Tools {
		t, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		def := llm.ToolDef{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
			},
		}
		if p, ok := t.(parameterized); ok {
			def.Function.Parameters = p.Parameters()
		}
		defs = append(defs, def)
	}
	return defs
}

func (r *Runner) recordRunMetrics(ctx context.Context, tr *trace.ExecutionTrace) {
	if r.metrics == nil {
		return
	}
	if tr.Completed {
		r.metrics.RunsCompleted.Add(ctx, 1)
	} else {
		r.metrics.RunsFailed.Add(ctx, 1)
	}
	if tr.FinishedAt != nil {
		r.metrics.RunDuration.Record(ctx, tr.FinishedAt.Sub(tr.StartedAt).Seconds())
	}
}
