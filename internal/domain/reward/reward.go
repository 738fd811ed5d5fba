// Package reward defines the five-dimension RewardVector that drives the
// revision trigger decision.
package reward

import (
	"fmt"
	"sort"
	"time"

	"github.com/vitalis-ai/vitalis/internal/domain"
)

// The five fixed reward dimensions.
const (
	DimTaskCompletion     = "task_completion"
	DimUserEngagement     = "user_engagement"
	DimTimingAccuracy     = "timing_accuracy"
	DimResourceEfficiency = "resource_efficiency"
	DimSafetyCompliance   = "safety_compliance"
)

// Dimensions lists all reward dimensions in canonical order.
var Dimensions = []string{
	DimTaskCompletion,
	DimUserEngagement,
	DimTimingAccuracy,
	DimResourceEfficiency,
	DimSafetyCompliance,
}

// Vector maps each dimension to a value in [0,1].
type Vector map[string]float64

// Validate checks every dimension is present and in range.
func (v Vector) Validate() error {
	for _, dim := range Dimensions {
		val, ok := v[dim]
		if !ok {
			return fmt.Errorf("%w: reward dimension %s missing", domain.ErrValidation, dim)
		}
		if val < 0 || val > 1 {
			return fmt.Errorf("%w: reward dimension %s out of range: %f", domain.ErrValidation, dim, val)
		}
	}
	return nil
}

// Mean returns the arithmetic mean across the five dimensions.
func (v Vector) Mean() float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, dim := range Dimensions {
		sum += v[dim]
	}
	return sum / float64(len(Dimensions))
}

// WeakDimensions returns the dimensions scoring below the floor, sorted
// ascending by value so the weakest come first.
func (v Vector) WeakDimensions(floor float64) []string {
	var weak []string
	for _, dim := range Dimensions {
		if v[dim] < floor {
			weak = append(weak, dim)
		}
	}
	sort.Slice(weak, func(i, j int) bool { return v[weak[i]] < v[weak[j]] })
	return weak
}

// ShouldRevise reports whether the vector trips the revision trigger:
// overall mean below meanFloor, or any single dimension below dimFloor.
func (v Vector) ShouldRevise(meanFloor, dimFloor float64) bool {
	if v.Mean() < meanFloor {
		return true
	}
	return len(v.WeakDimensions(dimFloor)) > 0
}

// Snapshot is one persisted monitoring observation for an agent version.
// History is real stored data, never synthesized after the fact.
type Snapshot struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ConfigID      string    `json:"config_id"`
	ConfigVersion int       `json:"config_version"`
	Vector        Vector    `json:"vector"`
	TraceCount    int       `json:"trace_count"`
	CreatedAt     time.Time `json:"created_at"`
}
