// Package approval defines the PendingApproval domain entity.
package approval

import (
	"encoding/json"
	"time"
)

// Status of a pending approval.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// PendingApproval is the record of a sensitive action suspended at the
// approval gate. It exists from the moment an action enters
// awaiting_approval until a human decision (or configured expiry) resolves
// it.
type PendingApproval struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	TraceID     string          `json:"trace_id"`
	ActionID    string          `json:"action_id"`
	Tool        string          `json:"tool"`
	Description string          `json:"description"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}
