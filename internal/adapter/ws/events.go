package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages pushed to the dashboard.
const (
	EventGenerationStatus = "agent.generation"
	EventAgentDeployed    = "agent.deployed"
	EventAgentRevised     = "agent.revised"
	EventActionStatus     = "action.status"
	EventAgentResponse    = "agent.response"
	EventApprovalRequest  = "approval.requested"
	EventApprovalResolved = "approval.resolved"
	EventRewardUpdate     = "reward.update"
)

// GenerationStatusEvent is broadcast as a user's agent moves through the
// generation pipeline.
type GenerationStatusEvent struct {
	UserID string `json:"user_id"`
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// ActionStatusEvent is broadcast on every action state transition.
type ActionStatusEvent struct {
	UserID   string `json:"user_id"`
	TraceID  string `json:"trace_id"`
	ActionID string `json:"action_id"`
	Tool     string `json:"tool"`
	Status   string `json:"status"`
}

// AgentResponseEvent carries the agent's final reply for a task or chat turn.
type AgentResponseEvent struct {
	UserID   string `json:"user_id"`
	TraceID  string `json:"trace_id"`
	Response string `json:"response"`
}

// ApprovalEvent is broadcast when an approval is requested or resolved.
type ApprovalEvent struct {
	ApprovalID  string `json:"approval_id"`
	UserID      string `json:"user_id"`
	Tool        string `json:"tool"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

// RewardUpdateEvent is broadcast after each monitoring cycle.
type RewardUpdateEvent struct {
	UserID        string             `json:"user_id"`
	ConfigVersion int                `json:"config_version"`
	Vector        map[string]float64 `json:"vector"`
	Mean          float64            `json:"mean"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
