package service_test

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/evaluation"
	"github.com/vitalis-ai/vitalis/internal/domain/scenario"
	"github.com/vitalis-ai/vitalis/internal/service"
)

func newTestHarness(store *mockStore, completer service.ChatCompleter) *service.Harness {
	runner, _, _, _ := newTestRunner(store, completer, 0)
	return service.NewHarness(runner, store, 0.5, 0.5, 2, time.Minute, slog.Default())
}

func TestEvaluateRunsEveryPair(t *testing.T) {
	store := newMockStore()
	// Replies cover every outcome keyword but call no tools, so tool score
	// is 0 and outcome score is 1 on each scenario.
	completer := &fakeLLM{fn: func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		return textResponse("sleep recommendation insight calendar optimization suggestion " +
			"stress product reminder hydration"), nil
	}}
	h := newTestHarness(store, completer)

	p := testProfile("user-1")
	candidates := []agent.Config{
		*testConfig("user-1", 1, "get_health_metrics"),
		*testConfig("user-1", 1, "send_message"),
	}
	results, err := h.Evaluate(context.Background(), p, candidates)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	suiteLen := len(scenario.BuiltinSuite(""))
	if len(results) != 2*suiteLen {
		t.Fatalf("expected %d results, got %d", 2*suiteLen, len(results))
	}
	for _, r := range results {
		if math.Abs(r.Score-0.5) > 1e-9 {
			t.Errorf("result score = %f, want 0.5", r.Score)
		}
		if r.TraceID == "" {
			t.Error("result missing trace reference")
		}
	}

	persisted, _ := store.ListEvaluationResults(context.Background(), "user-1")
	if len(persisted) != len(results) {
		t.Errorf("persisted %d results, want %d", len(persisted), len(results))
	}
}

func TestEvaluateRunFailureScoresZero(t *testing.T) {
	store := newMockStore()
	completer := &fakeLLM{fn: func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, fmt.Errorf("gateway down")
	}}
	h := newTestHarness(store, completer)

	results, err := h.Evaluate(context.Background(), testProfile("user-1"),
		[]agent.Config{*testConfig("user-1", 1, "get_health_metrics")})
	if err != nil {
		t.Fatalf("run failures must not abort the round: %v", err)
	}
	for _, r := range results {
		if r.Score != 0 {
			t.Errorf("failed run score = %f, want 0", r.Score)
		}
	}
}

func TestSleepFocusOutscoresBalancedOnSleepScenario(t *testing.T) {
	store := newMockStore()
	// The sleep-focused candidate addresses the sleep scenario's expected
	// outcomes; the balanced candidate answers it generically. Both answer
	// every other scenario the same way.
	completer := &fakeLLM{fn: func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		sleepTask := strings.Contains(req.Messages[1].Content, "trouble sleeping")
		sleepFocused := strings.Contains(req.Messages[0].Content, "sleep above all else")
		switch {
		case sleepTask && sleepFocused:
			return textResponse("Here is a sleep recommendation and an insight from your recent nights."), nil
		case sleepTask:
			return textResponse("Try winding down a bit earlier tonight."), nil
		default:
			return textResponse("Here is a plan for that."), nil
		}
	}}
	h := newTestHarness(store, completer)

	sleepCand := testConfig("user-1", 1, "get_health_metrics", "send_message")
	sleepCand.Focus = agent.FocusSleep
	sleepCand.Instructions = "Prioritize the user's sleep above all else."
	balancedCand := testConfig("user-1", 1, "get_health_metrics", "send_message")
	balancedCand.Instructions = "Support every wellness goal evenly."

	results, err := h.Evaluate(context.Background(), testProfile("user-1"),
		[]agent.Config{*sleepCand, *balancedCand})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	scores := map[string]float64{}
	for _, r := range results {
		if r.ScenarioID == "sleep-issues" {
			scores[r.CandidateID] = r.Score
		}
	}
	if scores[sleepCand.ID] <= scores[balancedCand.ID] {
		t.Errorf("sleep scenario: sleep candidate %f, balanced %f, want sleep strictly higher",
			scores[sleepCand.ID], scores[balancedCand.ID])
	}

	winner, ok := h.SelectWinner(results)
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.CandidateID != sleepCand.ID {
		t.Errorf("winner = %s, want the sleep-focused candidate %s", winner.CandidateID, sleepCand.ID)
	}
}

func TestSelectWinnerDeterministic(t *testing.T) {
	h := service.NewHarness(nil, nil, 0.5, 0.5, 1, 0, slog.Default())

	results := []evaluation.Result{
		{CandidateID: "b", ScenarioID: "s1", Score: 0.8, ToolCalls: 3},
		{CandidateID: "a", ScenarioID: "s1", Score: 0.8, ToolCalls: 3},
		{CandidateID: "c", ScenarioID: "s1", Score: 0.6, ToolCalls: 1},
	}
	winner, ok := h.SelectWinner(results)
	if !ok {
		t.Fatal("expected a winner")
	}
	// Equal mean and equal tool calls tie-break to the lexically smallest ID.
	if winner.CandidateID != "a" {
		t.Errorf("winner = %s, want a", winner.CandidateID)
	}

	// Re-running on the same inputs must pick the same winner.
	again, _ := h.SelectWinner(results)
	if again.CandidateID != winner.CandidateID {
		t.Error("selection is not deterministic")
	}
}

func TestSelectWinnerPrefersFewerToolCalls(t *testing.T) {
	h := service.NewHarness(nil, nil, 0.5, 0.5, 1, 0, slog.Default())

	results := []evaluation.Result{
		{CandidateID: "x", ScenarioID: "s1", Score: 0.9, ToolCalls: 5},
		{CandidateID: "y", ScenarioID: "s1", Score: 0.9, ToolCalls: 2},
	}
	winner, _ := h.SelectWinner(results)
	if winner.CandidateID != "y" {
		t.Errorf("winner = %s, want the more efficient y", winner.CandidateID)
	}
}
