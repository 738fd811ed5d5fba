// Package trace defines the ExecutionTrace and Action domain entities.
// Traces are append-only; an action's status moves forward only and is never
// retroactively edited.
package trace

import (
	"encoding/json"
	"time"
)

// ActionStatus is the lifecycle state of one action within a trace.
type ActionStatus string

const (
	StatusProposed         ActionStatus = "proposed"
	StatusAwaitingApproval ActionStatus = "awaiting_approval"
	StatusApproved         ActionStatus = "approved"
	StatusExecuting        ActionStatus = "executing"
	StatusCompleted        ActionStatus = "completed"
	StatusFailed           ActionStatus = "failed"
	StatusDenied           ActionStatus = "denied"
)

// actionTransitions enumerates the allowed forward edges.
var actionTransitions = map[ActionStatus][]ActionStatus{
	StatusProposed:         {StatusAwaitingApproval, StatusExecuting},
	StatusAwaitingApproval: {StatusApproved, StatusDenied},
	StatusApproved:         {StatusExecuting},
	StatusExecuting:        {StatusCompleted, StatusFailed},
}

// CanTransition reports whether an action may move from one status to another.
func CanTransition(from, to ActionStatus) bool {
	for _, next := range actionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s ActionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDenied
}

// ToolNone marks a pure-reasoning step that invoked no tool.
const ToolNone = "none"

// Action is one step of an execution run: a tool invocation or a reasoning
// step, with its observed input and output.
type Action struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Status    ActionStatus    `json:"status"`
	Reasoning string          `json:"reasoning,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Origin distinguishes evaluation runs from live production runs.
type Origin string

const (
	OriginEvaluation Origin = "evaluation"
	OriginLive       Origin = "live"
)

// ExecutionTrace is the ordered record of one run: candidate-vs-scenario
// during evaluation, or the deployed agent handling a live task.
type ExecutionTrace struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ConfigID      string     `json:"config_id"`
	ConfigVersion int        `json:"config_version"`
	ScenarioID    string     `json:"scenario_id,omitempty"`
	Origin        Origin     `json:"origin"`
	Task          string     `json:"task"`
	Actions       []Action   `json:"actions"`
	Response      string     `json:"response,omitempty"`
	Completed     bool       `json:"completed"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// ToolCallCount returns the number of actions that invoked a real tool.
func (t *ExecutionTrace) ToolCallCount() int {
	n := 0
	for i := range t.Actions {
		if t.Actions[i].Tool != ToolNone && t.Actions[i].Tool != "" {
			n++
		}
	}
	return n
}

// ToolsUsed returns the distinct tool names invoked, in first-use order.
func (t *ExecutionTrace) ToolsUsed() []string {
	seen := make(map[string]bool)
	var tools []string
	for i := range t.Actions {
		name := t.Actions[i].Tool
		if name == "" || name == ToolNone || seen[name] {
			continue
		}
		seen[name] = true
		tools = append(tools, name)
	}
	return tools
}

// CompletedActionCount returns how many actions reached completed status.
func (t *ExecutionTrace) CompletedActionCount() int {
	n := 0
	for i := range t.Actions {
		if t.Actions[i].Status == StatusCompleted {
			n++
		}
	}
	return n
}
