package process

import (
	"context"
	"io"
	"sync"
)

// Recorder is a Runner that records every command instead of executing it.
//
// Handler, when set, is called for each command and decides the exit code;
// it may write to cmd.Stdout and create files to simulate the real tool.
// Without a Handler every command exits 0.
type Recorder struct {
	Handler func(cmd Command) (int, error)

	mu       sync.Mutex
	commands []Command
}

// Run records cmd and dispatches it to the Handler.
func (r *Recorder) Run(_ context.Context, cmd Command) (int, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	h := r.Handler
	r.mu.Unlock()
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	if h == nil {
		return 0, nil
	}
	return h(cmd)
}

// Commands returns a copy of the recorded commands in call order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}
