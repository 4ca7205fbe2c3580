package dag

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"buildweaver/internal/trace"
)

func TestStateMachine_Transitions_ValidAndInvalid(t *testing.T) {
	state := ExecutionState{"build": ActionPending}

	if err := Transition(state, "build", ActionPending, ActionRunning); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
	if err := Transition(state, "build", ActionRunning, ActionCompleted); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
	if err := Transition(state, "build", ActionCompleted, ActionRunning); err == nil {
		t.Fatalf("terminal -> RUNNING must be rejected")
	}
	if err := Transition(state, "build", ActionPending, ActionRunning); err == nil {
		t.Fatalf("stale from-state must be rejected")
	}
	if err := Transition(state, "missing", ActionPending, ActionRunning); err == nil {
		t.Fatalf("unknown action must be rejected")
	}
	state["build"] = ActionSkipped
	if err := Transition(state, "build", ActionSkipped, ActionRunning); err == nil {
		t.Fatalf("SKIPPED is terminal")
	}
}

func TestFailAndPropagate_SkipsPlannedDownstreamOnly(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	state := NewExecutionState([]string{"clean", "build", "test", "run"})
	state["clean"] = ActionCompleted
	state["build"] = ActionRunning

	skipped, err := FailAndPropagate(g, state, "build")
	if err != nil {
		t.Fatalf("FailAndPropagate: %v", err)
	}
	if diff := cmp.Diff([]string{"test", "run"}, skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	want := ExecutionState{"clean": ActionCompleted, "build": ActionFailed, "test": ActionSkipped, "run": ActionSkipped}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
	if _, ok := state["inspect"]; ok {
		t.Fatalf("unplanned action must not be added to state")
	}
}

func TestFailAndPropagate_RejectsPendingAction(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	state := NewExecutionState([]string{"build"})
	if _, err := FailAndPropagate(g, state, "build"); err == nil {
		t.Fatalf("expected error failing a PENDING action")
	}
}

func TestExecutor_RunsPlanInOrderAndRecordsEvents(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	rec := trace.NewRecorder()
	ex := &Executor{Graph: g, Sink: rec}

	var ran []string
	res, err := ex.RunSerial(context.Background(), []string{"build", "test"}, func(_ context.Context, name string) error {
		ran = append(ran, name)
		return nil
	})
	if err != nil {
		t.Fatalf("RunSerial: %v", err)
	}
	if diff := cmp.Diff([]string{"build", "test"}, ran); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(res.ExecutionOrder, ran); diff != "" {
		t.Fatalf("ExecutionOrder mismatch (-want +got):\n%s", diff)
	}
	want := []trace.EventKind{
		trace.EventActionStarted, trace.EventActionCompleted,
		trace.EventActionStarted, trace.EventActionCompleted,
	}
	if diff := cmp.Diff(want, rec.Kinds()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutor_FirstFailureStopsTheRun(t *testing.T) {
	g := mustGraph(t, []Action{
		{Name: "init"},
		{Name: "clean"},
		{Name: "build", After: []string{"init"}},
	})
	rec := trace.NewRecorder()
	ex := &Executor{Graph: g, Sink: rec}
	boom := errors.New("boom")

	var ran []string
	res, err := ex.RunSerial(context.Background(), []string{"init", "clean", "build"}, func(_ context.Context, name string) error {
		ran = append(ran, name)
		if name == "init" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if diff := cmp.Diff([]string{"init"}, ran); diff != "" {
		t.Fatalf("ran mismatch (-want +got):\n%s", diff)
	}
	want := ExecutionState{"init": ActionFailed, "clean": ActionSkipped, "build": ActionSkipped}
	if diff := cmp.Diff(want, res.FinalState); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	var reasons []string
	for _, e := range rec.Snapshot() {
		if e.Kind == trace.EventActionSkipped {
			reasons = append(reasons, e.Action+":"+e.Reason)
		}
	}
	if diff := cmp.Diff([]string{"build:UpstreamFailed", "clean:Aborted"}, reasons); diff != "" {
		t.Fatalf("skip reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutor_CancelledContextRunsNothing(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &Executor{Graph: g}
	res, err := ex.RunSerial(ctx, []string{"build"}, func(context.Context, string) error {
		t.Fatalf("step must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.FinalState["build"] != ActionSkipped {
		t.Fatalf("expected build skipped, got %s", res.FinalState["build"])
	}
}
