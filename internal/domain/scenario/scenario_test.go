package scenario_test

import (
	"math"
	"testing"

	"github.com/vitalis-ai/vitalis/internal/domain/scenario"
)

func TestToolScore(t *testing.T) {
	s := scenario.Scenario{ExpectedTools: []string{"get_health_metrics", "send_message"}}

	cases := []struct {
		name string
		used []string
		want float64
	}{
		{"full coverage", []string{"get_health_metrics", "send_message"}, 1},
		{"half coverage", []string{"get_health_metrics"}, 0.5},
		{"extra call penalized", []string{"get_health_metrics", "send_message", "web_search"}, 0.9},
		{"nothing used", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.ToolScore(tc.used); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("ToolScore(%v) = %f, want %f", tc.used, got, tc.want)
			}
		})
	}
}

func TestToolScoreNoExpectations(t *testing.T) {
	s := scenario.Scenario{}
	if got := s.ToolScore(nil); got != 1 {
		t.Errorf("no tools expected, none used = %f, want 1", got)
	}
	if got := s.ToolScore([]string{"a", "b"}); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("two unnecessary calls = %f, want 0.8", got)
	}
}

func TestOutcomeScore(t *testing.T) {
	s := scenario.Scenario{ExpectedOutcomes: []string{"sleep", "recommendation"}}

	if got := s.OutcomeScore("Here is a SLEEP recommendation for you"); got != 1 {
		t.Errorf("both outcomes = %f, want 1", got)
	}
	if got := s.OutcomeScore("work on your sleep"); got != 0.5 {
		t.Errorf("one outcome = %f, want 0.5", got)
	}
	if got := s.OutcomeScore("good luck"); got != 0 {
		t.Errorf("no outcomes = %f, want 0", got)
	}
}

func TestOutcomeScoreCoherenceFallback(t *testing.T) {
	s := scenario.Scenario{}
	if got := s.OutcomeScore("anything at all"); got != 0.8 {
		t.Errorf("non-empty response = %f, want 0.8", got)
	}
	if got := s.OutcomeScore("   "); got != 0.5 {
		t.Errorf("blank response = %f, want 0.5", got)
	}
}

func TestBuiltinSuitePersona(t *testing.T) {
	base := scenario.BuiltinSuite("")
	stressed := scenario.BuiltinSuite(scenario.PersonaHighStress)
	if len(stressed) != len(base)+1 {
		t.Errorf("high-stress suite = %d scenarios, want %d", len(stressed), len(base)+1)
	}
	last := stressed[len(stressed)-1]
	if last.ID != "meeting-overload" {
		t.Errorf("extra scenario = %s, want meeting-overload", last.ID)
	}
}
