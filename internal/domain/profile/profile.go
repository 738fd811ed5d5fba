// Package profile defines the UserProfile domain entity.
package profile

import (
	"fmt"

	"github.com/vitalis-ai/vitalis/internal/domain"
)

// Known preference keys.
const (
	PrefMessagingChannel = "messaging_channel"
	PrefCommunication    = "communication_style"
	PrefPurchaseApproval = "purchase_approval"
)

// HealthMetrics holds the baseline health readings captured at onboarding.
type HealthMetrics struct {
	AvgSleepHours float64 `json:"avg_sleep_hours"`
	SleepQuality  float64 `json:"sleep_quality"`
	StressLevel   string  `json:"stress_level"`
}

// UserProfile is the read-only input to agent generation. It is immutable
// once loaded; services never write back to it.
type UserProfile struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Phone       string            `json:"phone,omitempty"`
	Goals       []string          `json:"wellness_goals"`
	WorkHours   string            `json:"work_hours,omitempty"`
	Health      HealthMetrics     `json:"health_metrics"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Preference returns the preference value for key, or "" when unset.
func (p *UserProfile) Preference(key string) string {
	if p.Preferences == nil {
		return ""
	}
	return p.Preferences[key]
}

// HasGoal reports whether the profile lists the given wellness goal.
func (p *UserProfile) HasGoal(goal string) bool {
	for _, g := range p.Goals {
		if g == goal {
			return true
		}
	}
	return false
}

// Validate checks the profile has the fields generation depends on.
func (p *UserProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile id is required", domain.ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: profile name is required", domain.ErrValidation)
	}
	if len(p.Goals) == 0 {
		return fmt.Errorf("%w: profile has no wellness goals", domain.ErrValidation)
	}
	return nil
}
