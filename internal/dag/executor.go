package dag

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"buildweaver/internal/trace"
)

// Step executes a single action.
type Step func(ctx context.Context, action string) error

// Executor runs a plan serially. The first failing action stops the run:
// actions downstream of it are skipped as UpstreamFailed and any remaining
// ones as Aborted.
type Executor struct {
	Graph *ActionGraph
	Sink  trace.Sink
	Log   logr.Logger
}

// PlanResult is the outcome of one executed plan.
type PlanResult struct {
	Plan []string

	// FinalState is the terminal state of each planned action.
	FinalState ExecutionState

	// ExecutionOrder lists the actions that were started.
	ExecutionOrder []string
}

// RunSerial executes plan in order, calling step for each action. It
// returns the error of the failing action, if any, alongside the result.
func (e *Executor) RunSerial(ctx context.Context, plan []string, step Step) (*PlanResult, error) {
	if e.Graph == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if step == nil {
		return nil, fmt.Errorf("nil step")
	}
	for _, name := range plan {
		if !e.Graph.Has(name) {
			return nil, unknownAction(name)
		}
	}

	state := NewExecutionState(plan)
	res := &PlanResult{Plan: append([]string(nil), plan...), FinalState: state}

	var runErr error
	for _, name := range plan {
		if state[name] != ActionPending {
			continue
		}
		if runErr != nil {
			e.skip(state, name, "Aborted")
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			e.skip(state, name, "Cancelled")
			continue
		}

		if err := Transition(state, name, ActionPending, ActionRunning); err != nil {
			return res, err
		}
		res.ExecutionOrder = append(res.ExecutionOrder, name)
		e.record(trace.EventActionStarted, name, "")
		e.Log.V(1).Info("action started", "action", name)

		if err := step(ctx, name); err != nil {
			runErr = fmt.Errorf("%s: %w", name, err)
			skipped, perr := FailAndPropagate(e.Graph, state, name)
			if perr != nil {
				return res, perr
			}
			e.record(trace.EventActionFailed, name, "")
			e.Log.V(1).Info("action failed", "action", name, "error", err.Error())
			for _, s := range skipped {
				e.record(trace.EventActionSkipped, s, "UpstreamFailed")
			}
			continue
		}
		if err := Transition(state, name, ActionRunning, ActionCompleted); err != nil {
			return res, err
		}
		e.record(trace.EventActionCompleted, name, "")
	}
	return res, runErr
}

func (e *Executor) skip(state ExecutionState, name, reason string) {
	if err := Transition(state, name, ActionPending, ActionSkipped); err != nil {
		return
	}
	e.record(trace.EventActionSkipped, name, reason)
}

func (e *Executor) record(kind trace.EventKind, action, reason string) {
	trace.SafeRecord(e.Sink, trace.Event{Kind: kind, Action: action, Reason: reason})
}
