package dag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func pipelineActions(jarExists bool) []Action {
	exists := func() bool { return jarExists }
	return []Action{
		{Name: "init"},
		{Name: "clean"},
		{Name: "build", After: []string{"init", "clean"}},
		{Name: "test", Requires: []Requirement{{Name: "build"}}},
		{Name: "run", After: []string{"test"}, Requires: []Requirement{{Name: "build", Unless: exists}}},
		{Name: "inspect", After: []string{"run"}, Requires: []Requirement{{Name: "build", Unless: exists}}},
	}
}

func mustGraph(t *testing.T, actions []Action) *ActionGraph {
	t.Helper()
	g, err := NewActionGraph(actions)
	if err != nil {
		t.Fatalf("NewActionGraph: %v", err)
	}
	return g
}

func TestPlan_OrderIsIndependentOfRequestOrder(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	for _, req := range [][]string{{"test", "build"}, {"build", "test"}, {"test"}} {
		got, err := g.Plan(req)
		if err != nil {
			t.Fatalf("Plan(%v): %v", req, err)
		}
		if diff := cmp.Diff([]string{"build", "test"}, got); diff != "" {
			t.Fatalf("Plan(%v) mismatch (-want +got):\n%s", req, diff)
		}
	}
}

func TestPlan_FollowsPriorityOrderAndDeduplicates(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	got, err := g.Plan([]string{"run", "clean", "run", "init", "inspect"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []string{"init", "clean", "build", "run", "inspect"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_UnlessDropsRequirement(t *testing.T) {
	g := mustGraph(t, pipelineActions(true))
	got, err := g.Plan([]string{"run"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if diff := cmp.Diff([]string{"run"}, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}

	// Requirements without Unless still apply.
	got, err = g.Plan([]string{"test", "run"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if diff := cmp.Diff([]string{"build", "test", "run"}, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_EmptyRequestIsEmptyPlan(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	got, err := g.Plan(nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("Plan(nil) = %v, %v", got, err)
	}
}

func TestPlan_UnknownAction(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	_, err := g.Plan([]string{"build", "deploy"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	var ge *GraphError
	if !errors.As(err, &ge) || ge.Action != "deploy" {
		t.Fatalf("expected the error to name deploy, got %v", err)
	}
	if got := err.Error(); got != `unknown action "deploy"` {
		t.Fatalf("Error() = %q", got)
	}
}

func TestNewActionGraph_RejectsInvalidDefinitions(t *testing.T) {
	cases := map[string][]Action{
		"empty":           nil,
		"unnamed":         {{Name: ""}},
		"duplicate name":  {{Name: "a"}, {Name: "a"}},
		"unknown after":   {{Name: "a", After: []string{"zzz"}}},
		"unknown require": {{Name: "a", Requires: []Requirement{{Name: "zzz"}}}},
		"self loop":       {{Name: "a", After: []string{"a"}}},
		"duplicate edge":  {{Name: "a"}, {Name: "b", After: []string{"a"}, Requires: []Requirement{{Name: "a"}}}},
	}
	for name, actions := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewActionGraph(actions)
			if !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("expected ErrInvalidGraph, got %v", err)
			}
		})
	}
}

func TestNewActionGraph_CycleWitnessIsDeterministic(t *testing.T) {
	actions := []Action{
		{Name: "a", After: []string{"c"}},
		{Name: "b", After: []string{"a"}},
		{Name: "c", After: []string{"b"}},
	}
	var first string
	for i := 0; i < 5; i++ {
		_, err := NewActionGraph(actions)
		if !errors.Is(err, ErrCycleFound) {
			t.Fatalf("expected ErrCycleFound, got %v", err)
		}
		if i == 0 {
			first = err.Error()
			continue
		}
		if err.Error() != first {
			t.Fatalf("witness changed: %q vs %q", err.Error(), first)
		}
	}
	if first != "action cycle: a -> b -> c -> a" {
		t.Fatalf("unexpected witness %q", first)
	}
	_, err := NewActionGraph(actions)
	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GraphError, got %T", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "a"}, ge.Cycle); diff != "" {
		t.Fatalf("cycle mismatch (-want +got):\n%s", diff)
	}
}

func TestEdges_CanonicalOrder(t *testing.T) {
	g := mustGraph(t, pipelineActions(false))
	want := []Edge{
		{From: "init", To: "build"},
		{From: "clean", To: "build"},
		{From: "build", To: "test"},
		{From: "build", To: "run"},
		{From: "build", To: "inspect"},
		{From: "test", To: "run"},
		{From: "run", To: "inspect"},
	}
	if diff := cmp.Diff(want, g.Edges()); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
}
