// Package profileseed provides the built-in demo user profiles and an
// in-memory profilesource implementation backed by them.
package profileseed

import (
	"context"
	"fmt"

	"github.com/vitalis-ai/vitalis/internal/domain"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/port/database"
)

// Profiles returns the built-in demo profiles. Each covers a distinct
// persona so generation produces visibly different agents.
func Profiles() []profile.UserProfile {
	return []profile.UserProfile{
		{
			ID:        "user-sarah",
			Name:      "Sarah Chen",
			Phone:     "+15550100",
			Goals:     []string{"better_sleep", "stress_reduction"},
			WorkHours: "09:00-18:00",
			Health: profile.HealthMetrics{
				AvgSleepHours: 5.8,
				SleepQuality:  0.55,
				StressLevel:   "high",
			},
			Preferences: map[string]string{
				profile.PrefMessagingChannel: "sms",
				profile.PrefCommunication:    "concise",
				profile.PrefPurchaseApproval: "always",
			},
		},
		{
			ID:        "user-marcus",
			Name:      "Marcus Webb",
			Phone:     "+15550101",
			Goals:     []string{"stress_reduction", "work_life_balance"},
			WorkHours: "08:00-19:00",
			Health: profile.HealthMetrics{
				AvgSleepHours: 6.4,
				SleepQuality:  0.62,
				StressLevel:   "very_high",
			},
			Preferences: map[string]string{
				profile.PrefMessagingChannel: "push",
				profile.PrefCommunication:    "supportive",
			},
		},
		{
			ID:        "user-elena",
			Name:      "Elena Ortiz",
			Goals:     []string{"general_wellness", "hydration"},
			WorkHours: "10:00-16:00",
			Health: profile.HealthMetrics{
				AvgSleepHours: 7.4,
				SleepQuality:  0.81,
				StressLevel:   "low",
			},
			Preferences: map[string]string{
				profile.PrefMessagingChannel: "email",
			},
		},
	}
}

// Source serves profiles from an in-memory set, for demos and tests.
type Source struct {
	profiles map[string]profile.UserProfile
	order    []string
}

// NewSource creates a Source preloaded with the built-in demo profiles.
func NewSource() *Source {
	s := &Source{profiles: make(map[string]profile.UserProfile)}
	for _, p := range Profiles() {
		s.profiles[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *Source) GetProfile(_ context.Context, userID string) (*profile.UserProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *Source) ListProfiles(_ context.Context) ([]profile.UserProfile, error) {
	out := make([]profile.UserProfile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id])
	}
	return out, nil
}

// SeedStore upserts the built-in profiles into persistent storage so
// foreign keys resolve and the API serves them immediately.
func SeedStore(ctx context.Context, store database.Store) error {
	for _, p := range Profiles() {
		p := p
		if err := store.UpsertProfile(ctx, &p); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.ID, err)
		}
	}
	return nil
}
