package dag

import (
	"container/heap"
	"fmt"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s ActionState) bool {
	switch s {
	case ActionCompleted, ActionFailed, ActionSkipped:
		return true
	default:
		return false
	}
}

// Transition performs a validated transition for a single action.
//
// The caller supplies the expected prior state (from) to make misuse
// observable. The state map is mutated if and only if the transition is
// valid.
func Transition(state ExecutionState, name string, from, to ActionState) error {
	cur, ok := state[name]
	if !ok {
		return fmt.Errorf("unknown action in state: %q", name)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", name, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
	}
	state[name] = to
	return nil
}

func isAllowedTransition(from, to ActionState) bool {
	switch from {
	case ActionPending:
		return to == ActionRunning || to == ActionSkipped
	case ActionRunning:
		return to == ActionCompleted || to == ActionFailed
	default:
		return false
	}
}

// FailAndPropagate transitions name from RUNNING to FAILED and marks every
// planned action reachable from it as SKIPPED. It returns the skipped names
// in canonical order. Actions absent from state are not part of the plan
// and are traversed without being marked.
func FailAndPropagate(g *ActionGraph, state ExecutionState, name string) ([]string, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	start, ok := g.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown action: %q", name)
	}
	cur, ok := state[name]
	if !ok {
		return nil, fmt.Errorf("unknown action in state: %q", name)
	}
	if cur != ActionRunning && cur != ActionFailed {
		return nil, fmt.Errorf("cannot fail %q from state %s", name, cur)
	}
	state[name] = ActionFailed

	visited := make([]bool, len(g.actions))
	visited[start] = true

	hq := &intMinHeap{}
	heap.Init(hq)
	for _, d := range g.outgoing[start] {
		heap.Push(hq, d)
	}

	var skipped []string
	for hq.Len() > 0 {
		u := heap.Pop(hq).(int)
		if visited[u] {
			continue
		}
		visited[u] = true

		downstream := g.actions[u].Name
		switch state[downstream] {
		case ActionPending:
			state[downstream] = ActionSkipped
			skipped = append(skipped, downstream)
		case ActionRunning:
			return skipped, fmt.Errorf("invariant violation: downstream action %q is RUNNING during failure propagation", downstream)
		}

		for _, v := range g.outgoing[u] {
			if !visited[v] {
				heap.Push(hq, v)
			}
		}
	}
	return skipped, nil
}
