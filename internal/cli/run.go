package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"buildweaver/internal/process"
)

// Env holds the process-level collaborators of an invocation. Zero fields
// get the real implementations.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	Runner     process.Runner
	HTTPClient *http.Client
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	return e
}

// Run parses args and executes the invocation against the real
// environment.
func Run(ctx context.Context, args []string) (CLIResult, error) {
	return RunWithEnv(ctx, args, Env{})
}

// RunWithEnv is Run with injectable collaborators.
func RunWithEnv(ctx context.Context, args []string, env Env) (CLIResult, error) {
	inv, err := ParseInvocation(args)
	if errors.Is(err, pflag.ErrHelp) {
		return CLIResult{ExitCode: ExitSuccess}, nil
	}
	if err != nil {
		return CLIResult{ExitCode: ExitCode(err)}, err
	}
	return Execute(ctx, inv, env)
}
