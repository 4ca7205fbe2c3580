package dag

// ActionState is the execution state of a planned action.
type ActionState string

const (
	ActionPending   ActionState = "PENDING"
	ActionRunning   ActionState = "RUNNING"
	ActionCompleted ActionState = "COMPLETED"
	ActionFailed    ActionState = "FAILED"
	ActionSkipped   ActionState = "SKIPPED"
)

// ExecutionState maps action name to its current state for one invocation.
// The graph itself is never mutated, so it can be planned repeatedly.
type ExecutionState map[string]ActionState

// NewExecutionState returns plan with every action PENDING.
func NewExecutionState(plan []string) ExecutionState {
	state := make(ExecutionState, len(plan))
	for _, name := range plan {
		state[name] = ActionPending
	}
	return state
}
