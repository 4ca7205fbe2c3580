// Package trace records the logical events of a pipeline invocation.
//
// A trace captures what the pipeline decided and did: which actions ran,
// which dependencies were downloaded or served from the lib cache, and how
// external processes exited. It is observational only and never affects
// execution.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	digest "github.com/opencontainers/go-digest"
)

// EventKind is the stable discriminator for Event. The string values are
// part of the trace file format; do not rename.
type EventKind string

const (
	EventActionStarted       EventKind = "ActionStarted"
	EventActionCompleted     EventKind = "ActionCompleted"
	EventActionFailed        EventKind = "ActionFailed"
	EventActionSkipped       EventKind = "ActionSkipped"
	EventDependencyFetched   EventKind = "DependencyFetched"
	EventDependencyCached    EventKind = "DependencyCached"
	EventDependencyRefetched EventKind = "DependencyRefetched"
	EventSourcesCompiled     EventKind = "SourcesCompiled"
	EventArchiveWritten      EventKind = "ArchiveWritten"
	EventProcessExited       EventKind = "ProcessExited"
)

// Event is a single logical step.
//
// Events carry no timestamps or error strings; Reason is a short stable code.
type Event struct {
	// Seq is assigned by the Recorder and defines canonical order.
	Seq int

	Kind EventKind

	// Action is the pipeline action the event belongs to ("build", "test"...).
	Action string

	// Subject is what the event is about: a coordinate, a jar path, a command.
	Subject string

	// Reason is a stable code such as "DigestMismatch" or "UpstreamFailed".
	Reason string

	// ExitCode is meaningful for EventProcessExited only.
	ExitCode int
}

// ExecutionTrace is the record of one invocation.
type ExecutionTrace struct {
	// PlanHash identifies the ordered action plan that was executed.
	PlanHash string
	Events   []Event
}

// PlanHash returns the sha256 digest of an ordered action plan.
func PlanHash(plan []string) string {
	return digest.FromString(strings.Join(plan, "\n")).String()
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.PlanHash == "" {
		return errors.New("planHash is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if isActionEvent(e.Kind) && e.Action == "" {
			return fmt.Errorf("events[%d].action is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

func isActionEvent(kind EventKind) bool {
	switch kind {
	case EventActionStarted, EventActionCompleted, EventActionFailed, EventActionSkipped:
		return true
	default:
		return false
	}
}

// Canonicalize orders events by sequence number.
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].Seq < t.Events[j].Seq
	})
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy so the caller's slice is left untouched.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{PlanHash: t.PlanHash}
	cp.Events = make([]Event, len(t.Events))
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&cp)
}

// Hash returns the digest of the canonical JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return digest.FromBytes(b).String(), nil
}

// MarshalJSON fixes field order.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.PlanHash == "" {
		return nil, errors.New("planHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"planHash":`)
	ph, _ := json.Marshal(t.PlanHash)
	buf.Write(ph)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	writeString := func(name, v string) {
		if v == "" {
			return
		}
		buf.WriteString(`,"` + name + `":`)
		b, _ := json.Marshal(v)
		buf.Write(b)
	}
	writeString("action", e.Action)
	writeString("subject", e.Subject)
	writeString("reason", e.Reason)
	if e.Kind == EventProcessExited {
		fmt.Fprintf(&buf, `,"exitCode":%d`, e.ExitCode)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
