package agent

// LifecycleState is the per-user orchestration state. Live traffic is served
// only while DEPLOYED; GENERATING and EVALUATING reject new generation
// requests rather than queueing them.
type LifecycleState string

const (
	StateNoAgent    LifecycleState = "no_agent"
	StateGenerating LifecycleState = "generating"
	StateEvaluating LifecycleState = "evaluating"
	StateDeployed   LifecycleState = "deployed"
	StateRevising   LifecycleState = "revising"
)

// lifecycleTransitions enumerates the allowed state edges.
var lifecycleTransitions = map[LifecycleState][]LifecycleState{
	StateNoAgent:    {StateGenerating},
	StateGenerating: {StateEvaluating, StateNoAgent},
	StateEvaluating: {StateDeployed, StateNoAgent},
	StateDeployed:   {StateRevising},
	StateRevising:   {StateDeployed},
}

// CanTransition reports whether moving from one lifecycle state to another
// is a legal edge of the state machine.
func CanTransition(from, to LifecycleState) bool {
	for _, next := range lifecycleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ServesTraffic reports whether the state accepts live runs (chat, demo,
// scheduled tasks).
func (s LifecycleState) ServesTraffic() bool {
	return s == StateDeployed
}
