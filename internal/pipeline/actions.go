package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"buildweaver/internal/archive"
	"buildweaver/internal/config"
	"buildweaver/internal/core"
	"buildweaver/internal/fsutil"
	"buildweaver/internal/logging"
	"buildweaver/internal/process"
	"buildweaver/internal/scan"
	"buildweaver/internal/trace"
)

const sourceExt = ".java"

// ErrNoArchive is returned by run and inspect when the jar is missing.
var ErrNoArchive = errors.New("no archive found; run build first")

// ErrNoLauncher is returned by test when no launcher jar is declared.
var ErrNoLauncher = errors.New("no test launcher in testDependencies")

// clean removes the output trees and the jar. Missing targets are fine.
func (o *Orchestrator) clean() error {
	for _, path := range []string{o.project.OutputDir, o.project.TestOutputDir, o.project.Jar} {
		if err := fsutil.RemoveIfExists(path); err != nil {
			return err
		}
	}
	return nil
}

// build scans, fetches, compiles and packages the main sources.
func (o *Orchestrator) build(ctx context.Context) error {
	p := o.project
	src, err := scan.Sources(p.SourceDir, sourceExt)
	if err != nil {
		return err
	}
	deps, err := o.fetcher.WithAction(ActionBuild).Fetch(ctx, p.LibDir, config.Coordinates(p.Dependencies)...)
	if err != nil {
		return err
	}

	unit := core.NewCompilationUnit(src, core.Paths(deps), p.OutputDir)
	if err := o.compiler.Compile(ctx, unit); err != nil {
		return err
	}
	o.record(trace.EventSourcesCompiled, ActionBuild, o.rel(p.SourceDir), 0)

	if err := os.MkdirAll(filepath.Dir(p.Jar), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(p.Jar), err)
	}
	manifest := core.NewManifest(p.MainClass)
	manifest.CreatedBy = "buildweaver"
	if err := o.archiver.Archive(p.OutputDir, p.Jar, manifest); err != nil {
		return err
	}
	o.record(trace.EventArchiveWritten, ActionBuild, o.rel(p.Jar), 0)
	o.log.Info("archive written", "path", p.Jar, "sources", len(src.Files))
	return nil
}

// test compiles the test sources against the jar and runs the JUnit
// console launcher. Its exit code is reported, not interpreted.
func (o *Orchestrator) test(ctx context.Context) error {
	p := o.project
	present, err := fsutil.Exists(p.TestSourceDir)
	if err != nil {
		return err
	}
	if !present {
		logging.Warn(o.log, "no test sources, skipping tests", "dir", p.TestSourceDir)
		return nil
	}
	if p.Launcher == "" {
		return ErrNoLauncher
	}

	f := o.fetcher.WithAction(ActionTest)
	testDeps, err := f.Fetch(ctx, p.TestLibDir, config.Coordinates(p.TestDependencies)...)
	if err != nil {
		return err
	}
	mainDeps, err := f.Fetch(ctx, p.LibDir, config.Coordinates(p.Dependencies)...)
	if err != nil {
		return err
	}

	classpath := append([]string{p.Jar}, core.Paths(mainDeps)...)
	classpath = append(classpath, core.Paths(testDeps)...)

	src, err := scan.Sources(p.TestSourceDir, sourceExt)
	if err != nil {
		return err
	}
	if err := o.compiler.Compile(ctx, core.NewCompilationUnit(src, classpath, p.TestOutputDir)); err != nil {
		return err
	}
	o.record(trace.EventSourcesCompiled, ActionTest, o.rel(p.TestSourceDir), 0)

	args := append([]string{}, p.Runtime.Command...)
	args = append(args, p.Runtime.Flags...)
	args = append(args,
		"-jar", launcherPath(testDeps, p.Launcher),
		"execute",
		"--class-path", joinPathList(append([]string{p.TestOutputDir}, classpath...)),
		"--scan-class-path",
	)
	return o.exec(ctx, ActionTest, args)
}

func launcherPath(deps []core.LocalArtifact, launcher core.Coordinate) string {
	for _, d := range deps {
		if d.Coordinate == launcher {
			return d.Path
		}
	}
	return ""
}

// run executes the main class from the lib directory classpath.
func (o *Orchestrator) run(ctx context.Context) error {
	p := o.project
	if !p.Artifact().Exists() {
		return fmt.Errorf("%w: %s", ErrNoArchive, p.Jar)
	}
	args := append([]string{}, p.Runtime.Command...)
	args = append(args, p.Runtime.Flags...)
	args = append(args, "-cp", runClasspath(p), p.MainClass)
	return o.exec(ctx, ActionRun, args)
}

// runClasspath is the lib wildcard, with the jar prepended when it lives
// elsewhere.
func runClasspath(p *config.Project) string {
	wildcard := filepath.Join(p.LibDir, "*")
	if filepath.Dir(p.Jar) == filepath.Clean(p.LibDir) {
		return wildcard
	}
	return joinPathList([]string{p.Jar, wildcard})
}

func (o *Orchestrator) exec(ctx context.Context, action string, args []string) error {
	cmd := process.Command{Args: args, Dir: o.project.Workdir, Stdout: o.stdout}
	code, err := o.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	o.record(trace.EventProcessExited, action, args[0], code)
	if code != 0 {
		o.log.Info("process exited with non-zero status", "action", action, "exitCode", code)
	}
	o.setExitCode(action, code)
	return nil
}

// inspect lists the jar entries.
func (o *Orchestrator) inspect() error {
	p := o.project
	if !p.Artifact().Exists() {
		return fmt.Errorf("%w: %s", ErrNoArchive, p.Jar)
	}
	entries, err := archive.Entries(p.Jar)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(o.stdout, e)
	}
	return nil
}

func joinPathList(paths []string) string {
	return strings.Join(paths, string(os.PathListSeparator))
}
