// Package agent defines the AgentConfiguration domain entity and the
// per-user lifecycle state machine.
package agent

import (
	"fmt"
	"time"

	"github.com/vitalis-ai/vitalis/internal/domain"
)

// Focus is the role emphasis a candidate configuration is generated with.
type Focus string

const (
	FocusSleep    Focus = "sleep"
	FocusStress   Focus = "stress"
	FocusBalanced Focus = "balanced"
)

// Config is one agent configuration: versioned, immutable once stored.
// Exactly one config per user is active at any instant; a revision creates a
// new version linked to its predecessor, it never mutates history.
type Config struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Focus           Focus     `json:"focus"`
	Instructions    string    `json:"instructions"`
	Model           string    `json:"model"`
	Tools           []string  `json:"tools"`
	Version         int       `json:"version"`
	PreviousVersion int       `json:"previous_version,omitempty"`
	Active          bool      `json:"active"`
	Degraded        bool      `json:"degraded,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PermitsTool reports whether the configuration allows the named tool.
func (c *Config) PermitsTool(name string) bool {
	for _, t := range c.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// Validate checks the invariants a configuration must hold before storage.
func (c *Config) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: config user_id is required", domain.ErrValidation)
	}
	if c.Instructions == "" {
		return fmt.Errorf("%w: config instructions are required", domain.ErrValidation)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: config model is required", domain.ErrValidation)
	}
	if c.Version < 1 {
		return fmt.Errorf("%w: config version must be >= 1", domain.ErrValidation)
	}
	if c.Version > 1 && c.PreviousVersion != c.Version-1 {
		return fmt.Errorf("%w: previous_version must be version-1", domain.ErrValidation)
	}
	return nil
}
