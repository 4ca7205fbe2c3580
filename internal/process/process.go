// Package process runs external commands for the pipeline: the compiler,
// the Java runtime and the test launcher.
//
// The child's stdout and stderr are joined on one pipe and drained
// concurrently with the child so a full pipe buffer can never deadlock it.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mattn/go-shellwords"
	"golang.org/x/sync/errgroup"
)

// Command describes one external process invocation.
type Command struct {
	// Args is the program followed by its arguments. Args[0] is looked up
	// in PATH.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the parent environment.
	Env []string

	// Stdout receives the combined stdout/stderr stream. Nil discards it.
	Stdout io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner is the process-execution capability consumed by the pipeline.
//
// A non-zero exit is reported through the returned code with a nil error.
// A non-nil error means the process could not be started or its output
// could not be drained.
type Runner interface {
	Run(ctx context.Context, cmd Command) (int, error)
}

// Exec runs commands with os/exec.
type Exec struct {
	Log logr.Logger
}

// NewExec returns an Exec runner that logs through log.
func NewExec(log logr.Logger) *Exec {
	return &Exec{Log: log}
}

// Run starts cmd, streams its combined output to cmd.Stdout and blocks until
// the process exits and the stream is fully drained.
func (e *Exec) Run(ctx context.Context, cmd Command) (int, error) {
	if len(cmd.Args) == 0 {
		return -1, fmt.Errorf("command is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, fmt.Errorf("create output pipe: %w", err)
	}
	c.Stdout = pw
	c.Stderr = pw

	e.Log.V(1).Info("starting process", "command", cmd.String(), "dir", cmd.Dir)
	if err := c.Start(); err != nil {
		pr.Close()
		pw.Close()
		return -1, fmt.Errorf("failed to start %s: %w", cmd.Args[0], err)
	}
	// The child holds its own copy of the write end; closing ours lets the
	// reader see EOF once the child exits.
	pw.Close()

	out := cmd.Stdout
	if out == nil {
		out = io.Discard
	}

	var g errgroup.Group
	g.Go(func() error {
		defer pr.Close()
		_, err := io.Copy(out, pr)
		return err
	})

	waitErr := c.Wait()
	copyErr := g.Wait()

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return -1, fmt.Errorf("failed to execute %s: %w", cmd.Args[0], waitErr)
		}
		exitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return exitCode, fmt.Errorf("execution cancelled: %w", ctxErr)
	}
	if copyErr != nil {
		return exitCode, fmt.Errorf("draining output of %s: %w", cmd.Args[0], copyErr)
	}
	e.Log.V(1).Info("process exited", "command", cmd.Args[0], "exitCode", exitCode)
	return exitCode, nil
}

// Parse splits a shell-words command string such as "javac -J-Xmx512m"
// into argv.
func Parse(raw string) ([]string, error) {
	args, err := shellwords.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", raw, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("command %q must contain at least one argument", raw)
	}
	return args, nil
}

// Capture runs cmd through r while also keeping a copy of its combined
// output. The copy is returned even when the process fails.
func Capture(ctx context.Context, r Runner, cmd Command) (int, []byte, error) {
	var buf bytes.Buffer
	if cmd.Stdout != nil {
		cmd.Stdout = io.MultiWriter(cmd.Stdout, &buf)
	} else {
		cmd.Stdout = &buf
	}
	code, err := r.Run(ctx, cmd)
	return code, buf.Bytes(), err
}
