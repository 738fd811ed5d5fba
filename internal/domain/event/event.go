// Package event defines the AgentEvent domain entity for the append-only
// action-transition log.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of agent event.
type Type string

const (
	TypeGenerationStarted   Type = "agent.generation.started"
	TypeGenerationCompleted Type = "agent.generation.completed"
	TypeGenerationDegraded  Type = "agent.generation.degraded"
	TypeAgentDeployed       Type = "agent.deployed"
	TypeAgentRevised        Type = "agent.revised"

	TypeRunStarted   Type = "run.started"
	TypeRunCompleted Type = "run.completed"

	TypeActionProposed  Type = "action.proposed"
	TypeActionExecuting Type = "action.executing"
	TypeActionCompleted Type = "action.completed"
	TypeActionFailed    Type = "action.failed"

	TypeApprovalRequested Type = "approval.requested"
	TypeApprovalResolved  Type = "approval.resolved"
)

// AgentEvent is a single immutable entry in a user's agent event log.
// Delivery to the live event sink is at-least-once; consumers deduplicate
// by ID.
type AgentEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	TraceID   string          `json:"trace_id,omitempty"`
	ConfigID  string          `json:"config_id,omitempty"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
