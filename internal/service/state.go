package service

import (
	"fmt"
	"sync"

	"github.com/vitalis-ai/vitalis/internal/domain"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
)

// StateTracker holds the in-memory per-user lifecycle state and the per-user
// mutex that serializes generation, revision and demo pipelines. Deployed
// state is reconstructed from storage on restart via Restore.
type StateTracker struct {
	mu     sync.Mutex
	states map[string]agent.LifecycleState
	locks  map[string]*sync.Mutex
}

// NewStateTracker creates an empty tracker; unknown users are NO_AGENT.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		states: make(map[string]agent.LifecycleState),
		locks:  make(map[string]*sync.Mutex),
	}
}

// State returns the user's current lifecycle state.
func (t *StateTracker) State(userID string) agent.LifecycleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[userID]; ok {
		return s
	}
	return agent.StateNoAgent
}

// Transition moves the user along a legal state-machine edge, or returns
// ErrConflict describing the rejected move.
func (t *StateTracker) Transition(userID string, to agent.LifecycleState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from, ok := t.states[userID]
	if !ok {
		from = agent.StateNoAgent
	}
	if !agent.CanTransition(from, to) {
		return fmt.Errorf("%w: lifecycle %s -> %s", domain.ErrConflict, from, to)
	}
	t.states[userID] = to
	return nil
}

// Restore forces a user's state without edge validation, for rebuilding
// in-memory state from storage at startup.
func (t *StateTracker) Restore(userID string, s agent.LifecycleState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[userID] = s
}

// Lock acquires the user's pipeline mutex and returns the unlock function.
func (t *StateTracker) Lock(userID string) func() {
	t.mu.Lock()
	l, ok := t.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[userID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
