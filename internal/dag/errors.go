package dag

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of GraphError, for use with errors.Is.
var (
	ErrInvalidGraph  = errors.New("invalid action graph")
	ErrCycleFound    = errors.New("action cycle")
	ErrUnknownAction = errors.New("unknown action")
)

// GraphError describes why a graph could not be built or a request could
// not be planned.
type GraphError struct {
	Kind error

	// Action is the action the problem was found on. Empty when the
	// problem concerns the graph as a whole.
	Action string

	// Cycle is the witness for ErrCycleFound, first action repeated last.
	Cycle []string

	Detail string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Action != "" {
		fmt.Fprintf(&b, " %q", e.Action)
	}
	if len(e.Cycle) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Cycle, " -> "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidAction(action, format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Action: action, Detail: fmt.Sprintf(format, args...)}
}

func unknownAction(name string) error {
	return &GraphError{Kind: ErrUnknownAction, Action: name}
}

func cycleError(path []string) error {
	return &GraphError{Kind: ErrCycleFound, Cycle: path}
}
