package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	"github.com/vitalis-ai/vitalis/internal/domain"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/approval"
	"github.com/vitalis-ai/vitalis/internal/domain/evaluation"
	"github.com/vitalis-ai/vitalis/internal/domain/event"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/domain/reward"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
	"github.com/vitalis-ai/vitalis/internal/port/messagequeue"
)

// mockStore is an in-memory database.Store for service tests.
type mockStore struct {
	mu          sync.Mutex
	profiles    map[string]profile.UserProfile
	configs     map[string]agent.Config
	traces      map[string]trace.ExecutionTrace
	evaluations []evaluation.Result
	snapshots   []reward.Snapshot
	approvals   map[string]approval.PendingApproval
}

func newMockStore() *mockStore {
	return &mockStore{
		profiles:  make(map[string]profile.UserProfile),
		configs:   make(map[string]agent.Config),
		traces:    make(map[string]trace.ExecutionTrace),
		approvals: make(map[string]approval.PendingApproval),
	}
}

func (m *mockStore) GetProfile(_ context.Context, userID string) (*profile.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: profile %s", domain.ErrNotFound, userID)
	}
	return &p, nil
}

func (m *mockStore) ListProfiles(_ context.Context) ([]profile.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []profile.UserProfile
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) UpsertProfile(_ context.Context, p *profile.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = *p
	return nil
}

func (m *mockStore) CreateConfig(_ context.Context, c *agent.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.configs[c.ID] = *c
	return nil
}

func (m *mockStore) GetConfig(_ context.Context, id string) (*agent.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: config %s", domain.ErrNotFound, id)
	}
	return &c, nil
}

func (m *mockStore) GetActiveConfig(_ context.Context, userID string) (*agent.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.configs {
		if c.UserID == userID && c.Active {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: no active config for %s", domain.ErrNotFound, userID)
}

func (m *mockStore) ListConfigVersions(_ context.Context, userID string) ([]agent.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agent.Config
	for _, c := range m.configs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) ActivateConfig(_ context.Context, userID, configID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.configs[configID]
	if !ok || target.UserID != userID {
		return fmt.Errorf("%w: config %s", domain.ErrNotFound, configID)
	}
	for id, c := range m.configs {
		if c.UserID == userID && c.Active {
			c.Active = false
			m.configs[id] = c
		}
	}
	target.Active = true
	m.configs[configID] = target
	return nil
}

func (m *mockStore) MarkConfigDegraded(_ context.Context, configID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[configID]
	if !ok {
		return fmt.Errorf("%w: config %s", domain.ErrNotFound, configID)
	}
	c.Degraded = true
	m.configs[configID] = c
	return nil
}

// activeConfigCount reports how many of the user's configs are flagged active.
func (m *mockStore) activeConfigCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.configs {
		if c.UserID == userID && c.Active {
			n++
		}
	}
	return n
}

func (m *mockStore) CreateTrace(_ context.Context, t *trace.ExecutionTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traces[t.ID] = *t
	return nil
}

func (m *mockStore) GetTrace(_ context.Context, id string) (*trace.ExecutionTrace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traces[id]
	if !ok {
		return nil, fmt.Errorf("%w: trace %s", domain.ErrNotFound, id)
	}
	return &t, nil
}

func (m *mockStore) FinalizeTrace(_ context.Context, t *trace.ExecutionTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.traces[t.ID]; !ok {
		return fmt.Errorf("%w: trace %s", domain.ErrNotFound, t.ID)
	}
	m.traces[t.ID] = *t
	return nil
}

func (m *mockStore) ListRecentTraces(_ context.Context, userID string, origin trace.Origin, limit int) ([]trace.ExecutionTrace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []trace.ExecutionTrace
	for _, t := range m.traces {
		if t.UserID == userID && t.Origin == origin {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) CreateEvaluationResult(_ context.Context, r *evaluation.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.evaluations = append(m.evaluations, *r)
	return nil
}

func (m *mockStore) ListEvaluationResults(_ context.Context, userID string) ([]evaluation.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []evaluation.Result
	for _, r := range m.evaluations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) CreateRewardSnapshot(_ context.Context, s *reward.Snapshot) error {
	if err := s.Vector.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.snapshots = append(m.snapshots, *s)
	return nil
}

func (m *mockStore) ListRewardSnapshots(_ context.Context, userID string, limit int) ([]reward.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reward.Snapshot
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].UserID == userID {
			out = append(out, m.snapshots[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) CreateApproval(_ context.Context, a *approval.PendingApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = approval.StatusPending
	}
	m.approvals[a.ID] = *a
	return nil
}

func (m *mockStore) GetApproval(_ context.Context, id string) (*approval.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[id]
	if !ok {
		return nil, fmt.Errorf("%w: approval %s", domain.ErrNotFound, id)
	}
	return &a, nil
}

func (m *mockStore) ListPendingApprovals(_ context.Context) ([]approval.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []approval.PendingApproval
	for _, a := range m.approvals {
		if a.Status == approval.StatusPending {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) ResolveApproval(_ context.Context, id string, status approval.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[id]
	if !ok {
		return fmt.Errorf("%w: approval %s", domain.ErrNotFound, id)
	}
	if a.Status != approval.StatusPending {
		return fmt.Errorf("%w: approval %s already %s", domain.ErrConflict, id, a.Status)
	}
	now := time.Now().UTC()
	a.Status = status
	a.ResolvedAt = &now
	m.approvals[id] = a
	return nil
}

// mockEventStore records appended events.
type mockEventStore struct {
	mu     sync.Mutex
	events []event.AgentEvent
}

func (m *mockEventStore) Append(_ context.Context, ev *event.AgentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockEventStore) LoadByUser(_ context.Context, userID string) ([]event.AgentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.AgentEvent
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockEventStore) LoadByTrace(_ context.Context, traceID string) ([]event.AgentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.AgentEvent
	for _, ev := range m.events {
		if ev.TraceID == traceID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockEventStore) countType(t event.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// mockQueue records published messages.
type mockQueue struct {
	mu       sync.Mutex
	messages []queuedMessage
}

type queuedMessage struct {
	Subject string
	Data    []byte
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, queuedMessage{Subject: subject, Data: data})
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Close() error { return nil }

func (m *mockQueue) published(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Subject == subject {
			n++
		}
	}
	return n
}

// mockHub records broadcast events.
type mockHub struct {
	mu     sync.Mutex
	events []string
}

func (m *mockHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

// fakeLLM answers chat completions from a caller-provided function.
type fakeLLM struct {
	mu    sync.Mutex
	calls int
	fn    func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

func (f *fakeLLM) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// textResponse builds a completion that ends the run with content.
func textResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.Message{Role: "assistant", Content: content}}},
	}
}

// toolCallResponse builds a completion requesting one tool invocation.
func toolCallResponse(toolName, args string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.Message{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       uuid.NewString(),
				Type:     "function",
				Function: llm.FunctionCall{Name: toolName, Arguments: args},
			}},
		}}},
	}
}

func testProfile(id string) *profile.UserProfile {
	return &profile.UserProfile{
		ID:    id,
		Name:  "Sarah",
		Goals: []string{"improve sleep", "reduce stress"},
		Health: profile.HealthMetrics{
			AvgSleepHours: 5.5,
			SleepQuality:  0.55,
			StressLevel:   "low",
		},
		Preferences: map[string]string{
			profile.PrefMessagingChannel: "sms",
		},
	}
}

func testConfig(userID string, version int, toolNames ...string) *agent.Config {
	c := &agent.Config{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         "wellness agent",
		Focus:        agent.FocusBalanced,
		Instructions: "Help the user sleep better.",
		Model:        "openai/gpt-4o-mini",
		Tools:        toolNames,
		Version:      version,
	}
	if version > 1 {
		c.PreviousVersion = version - 1
	}
	return c
}
