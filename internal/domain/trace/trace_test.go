package trace_test

import (
	"testing"

	"github.com/vitalis-ai/vitalis/internal/domain/trace"
)

func TestActionTransitions(t *testing.T) {
	allowed := []struct{ from, to trace.ActionStatus }{
		{trace.StatusProposed, trace.StatusAwaitingApproval},
		{trace.StatusProposed, trace.StatusExecuting},
		{trace.StatusAwaitingApproval, trace.StatusApproved},
		{trace.StatusAwaitingApproval, trace.StatusDenied},
		{trace.StatusApproved, trace.StatusExecuting},
		{trace.StatusExecuting, trace.StatusCompleted},
		{trace.StatusExecuting, trace.StatusFailed},
	}
	for _, tc := range allowed {
		if !trace.CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to trace.ActionStatus }{
		{trace.StatusProposed, trace.StatusCompleted},
		{trace.StatusDenied, trace.StatusExecuting},
		{trace.StatusCompleted, trace.StatusFailed},
		{trace.StatusAwaitingApproval, trace.StatusExecuting},
	}
	for _, tc := range denied {
		if trace.CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []trace.ActionStatus{trace.StatusCompleted, trace.StatusFailed, trace.StatusDenied}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []trace.ActionStatus{
		trace.StatusProposed, trace.StatusAwaitingApproval,
		trace.StatusApproved, trace.StatusExecuting,
	}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestToolAccounting(t *testing.T) {
	tr := trace.ExecutionTrace{
		Actions: []trace.Action{
			{Tool: "get_health_metrics", Status: trace.StatusCompleted},
			{Tool: "get_health_metrics", Status: trace.StatusCompleted},
			{Tool: trace.ToolNone, Status: trace.StatusCompleted},
			{Tool: "send_message", Status: trace.StatusDenied},
		},
	}

	if n := tr.ToolCallCount(); n != 3 {
		t.Errorf("ToolCallCount = %d, want 3", n)
	}
	used := tr.ToolsUsed()
	if len(used) != 2 || used[0] != "get_health_metrics" || used[1] != "send_message" {
		t.Errorf("ToolsUsed = %v", used)
	}
	if n := tr.CompletedActionCount(); n != 3 {
		t.Errorf("CompletedActionCount = %d, want 3", n)
	}
}
