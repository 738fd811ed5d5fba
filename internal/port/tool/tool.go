// Package tool defines the capability port (interface) agents invoke and
// the registry that maps tool names to handlers.
package tool

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrExecution wraps any failure inside a tool handler. Execution errors are
// recorded as failed actions; they never abort the surrounding run.
var ErrExecution = errors.New("tool execution failed")

// Tool is the capability invocation contract. Each tool declares whether its
// side effects require human approval before they may occur.
type Tool interface {
	// Name returns the unique tool identifier (e.g. "send_message").
	Name() string

	// Description returns the human-readable capability summary given to
	// the model.
	Description() string

	// RequiresApproval reports whether invocations must pass the approval
	// gate before executing.
	RequiresApproval() bool

	// Invoke executes the capability with a JSON input payload and returns
	// a JSON output payload.
	Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}
