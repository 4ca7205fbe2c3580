// Package compile invokes the Java compiler over a compilation unit.
package compile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"buildweaver/internal/core"
	"buildweaver/internal/process"
)

// DefaultFlags are passed to every compilation.
var DefaultFlags = []string{"--enable-preview", "--release", "21"}

// ErrNoSources is returned for a unit without files.
var ErrNoSources = errors.New("no source files to compile")

// CompileError reports a compiler run that exited non-zero.
type CompileError struct {
	ExitCode    int
	Diagnostics string
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compilation failed with exit code %d", e.ExitCode)
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		msg += ":\n" + d
	}
	return msg
}

// Compiler turns a CompilationUnit into class files under its OutputDir.
type Compiler interface {
	Compile(ctx context.Context, unit core.CompilationUnit) error
}

// Javac runs the javac tool through a process.Runner.
type Javac struct {
	// Command is the compiler argv prefix. Empty means "javac".
	Command []string

	// Flags follow the classpath. Nil means DefaultFlags.
	Flags []string

	Runner process.Runner

	// Output receives the compiler's combined output.
	Output io.Writer

	Log logr.Logger
}

// Args returns the full argv for unit.
func (j *Javac) Args(unit core.CompilationUnit) []string {
	cmd := j.Command
	if len(cmd) == 0 {
		cmd = []string{"javac"}
	}
	flags := j.Flags
	if flags == nil {
		flags = DefaultFlags
	}

	args := make([]string, 0, len(cmd)+6+len(flags)+len(unit.Files))
	args = append(args, cmd...)
	args = append(args, "-d", unit.OutputDir, "-sourcepath", unit.SourceRoot)
	if len(unit.Classpath) > 0 {
		args = append(args, "-cp", strings.Join(unit.Classpath, string(os.PathListSeparator)))
	}
	args = append(args, flags...)
	args = append(args, unit.Files...)
	return args
}

// Compile creates the output directory and runs the compiler. A non-zero
// exit is returned as *CompileError carrying the captured output.
func (j *Javac) Compile(ctx context.Context, unit core.CompilationUnit) error {
	if len(unit.Files) == 0 {
		return ErrNoSources
	}
	if j.Runner == nil {
		return errors.New("compile: no process runner configured")
	}
	if err := os.MkdirAll(filepath.Clean(unit.OutputDir), 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", unit.OutputDir, err)
	}

	args := j.Args(unit)
	j.Log.V(1).Info("compiling", "files", len(unit.Files), "classpath", len(unit.Classpath), "out", unit.OutputDir)
	code, out, err := process.Capture(ctx, j.Runner, process.Command{Args: args, Stdout: j.Output})
	if err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	if code != 0 {
		return &CompileError{ExitCode: code, Diagnostics: string(out)}
	}
	return nil
}
