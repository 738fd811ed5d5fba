// Package scenario defines evaluation scenarios and the built-in suite.
package scenario

import "strings"

// Scenario is one scripted evaluation case. Scenarios are immutable and
// defined independently of any user.
type Scenario struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Prompt           string   `json:"prompt"`
	ExpectedTools    []string `json:"expected_tools"`
	ExpectedOutcomes []string `json:"expected_outcomes"`
}

// OutcomeScore returns the fraction of expected outcome keywords the terminal
// response addresses, in [0,1]. A scenario with no expectations scores a
// response as 0.8 when non-empty, 0.5 otherwise, matching a plain coherence
// check.
func (s *Scenario) OutcomeScore(response string) float64 {
	if len(s.ExpectedOutcomes) == 0 {
		if strings.TrimSpace(response) != "" {
			return 0.8
		}
		return 0.5
	}
	lower := strings.ToLower(response)
	addressed := 0
	for _, outcome := range s.ExpectedOutcomes {
		if strings.Contains(lower, strings.ToLower(outcome)) {
			addressed++
		}
	}
	return float64(addressed) / float64(len(s.ExpectedOutcomes))
}

// ToolScore returns the expected-capability score in [0,1]: coverage of the
// checklist minus a penalty for unnecessary calls.
func (s *Scenario) ToolScore(used []string) float64 {
	if len(s.ExpectedTools) == 0 {
		if len(used) == 0 {
			return 1
		}
		// Every call is unnecessary when nothing was expected.
		return clamp01(1 - 0.1*float64(len(used)))
	}

	expected := make(map[string]bool, len(s.ExpectedTools))
	for _, t := range s.ExpectedTools {
		expected[t] = true
	}

	hits, extras := 0, 0
	for _, t := range used {
		if expected[t] {
			hits++
		} else {
			extras++
		}
	}

	coverage := float64(hits) / float64(len(s.ExpectedTools))
	return clamp01(coverage - 0.1*float64(extras))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
