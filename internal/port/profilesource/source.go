// Package profilesource defines the read-only profile lookup port.
package profilesource

import (
	"context"

	"github.com/vitalis-ai/vitalis/internal/domain/profile"
)

// Source is the port interface for resolving user profiles. Profiles are
// read-only inputs to generation; no write path exists here.
type Source interface {
	// GetProfile returns the profile for userID, or domain.ErrNotFound.
	GetProfile(ctx context.Context, userID string) (*profile.UserProfile, error)

	// ListProfiles returns all known profiles.
	ListProfiles(ctx context.Context) ([]profile.UserProfile, error)
}
