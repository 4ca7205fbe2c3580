// Package pipeline sequences the project actions: init, clean, build, test,
// run and inspect.
//
// Requested actions are planned through an action graph, so the execution
// order never depends on the order they were requested in, and executed
// serially. The first failing action stops the invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"buildweaver/internal/archive"
	"buildweaver/internal/compile"
	"buildweaver/internal/config"
	"buildweaver/internal/dag"
	"buildweaver/internal/fetch"
	"buildweaver/internal/fsutil"
	"buildweaver/internal/process"
	"buildweaver/internal/trace"
)

// Action names.
const (
	ActionInit    = "init"
	ActionClean   = "clean"
	ActionBuild   = "build"
	ActionTest    = "test"
	ActionRun     = "run"
	ActionInspect = "inspect"
)

// Actions lists every action in priority order.
var Actions = []string{ActionInit, ActionClean, ActionBuild, ActionTest, ActionRun, ActionInspect}

// Options wires an Orchestrator. Project is required; nil collaborators
// get the real implementations.
type Options struct {
	Project *config.Project

	Fetcher  *fetch.Fetcher
	Compiler compile.Compiler
	Archiver archive.Archiver
	Runner   process.Runner

	// HTTPClient is used when Fetcher is nil.
	HTTPClient *http.Client

	// Stdout receives download progress, process output and inspect
	// listings.
	Stdout io.Writer

	Log  logr.Logger
	Sink trace.Sink
}

// Result summarizes one invocation.
type Result struct {
	// Plan is the ordered action plan.
	Plan     []string
	PlanHash string

	// Executed lists the actions that were started, in order.
	Executed []string

	// ExitCode is the exit code of the run process when run executed,
	// otherwise that of the test launcher.
	ExitCode int
}

// Orchestrator runs actions for one project.
type Orchestrator struct {
	project  *config.Project
	fetcher  *fetch.Fetcher
	compiler compile.Compiler
	archiver archive.Archiver
	runner   process.Runner
	stdout   io.Writer
	log      logr.Logger
	sink     trace.Sink

	exitCode int
}

// New validates opts and fills in defaults.
func New(opts Options) (*Orchestrator, error) {
	p := opts.Project
	if p == nil {
		return nil, errors.New("pipeline: project is required")
	}
	o := &Orchestrator{
		project:  p,
		fetcher:  opts.Fetcher,
		compiler: opts.Compiler,
		archiver: opts.Archiver,
		runner:   opts.Runner,
		stdout:   opts.Stdout,
		log:      opts.Log,
		sink:     opts.Sink,
	}
	if o.stdout == nil {
		o.stdout = io.Discard
	}
	if o.sink == nil {
		o.sink = trace.NopSink{}
	}
	if o.runner == nil {
		o.runner = process.NewExec(o.log.WithName("process"))
	}
	if o.fetcher == nil {
		f, err := fetch.New(fetch.Options{
			Repository:   p.Repository,
			Client:       opts.HTTPClient,
			Progress:     o.stdout,
			Log:          o.log.WithName("fetch"),
			Verify:       p.Verify,
			Pins:         p.Pins(),
			LockfilePath: p.Lockfile,
			Sink:         o.sink,
		})
		if err != nil {
			return nil, err
		}
		o.fetcher = f
	}
	if o.compiler == nil {
		o.compiler = &compile.Javac{
			Command: p.Compiler.Command,
			Flags:   p.Compiler.Flags,
			Runner:  o.runner,
			Output:  o.stdout,
			Log:     o.log.WithName("compile"),
		}
	}
	if o.archiver == nil {
		o.archiver = archive.Jar{Log: o.log.WithName("archive")}
	}
	return o, nil
}

// graph builds the action graph for a request. run and inspect only pull
// in build when no usable jar exists; a requested clean always removes it.
func (o *Orchestrator) graph(requested map[string]bool) (*dag.ActionGraph, error) {
	jarReady := func() bool {
		return !requested[ActionClean] && o.project.Artifact().Exists()
	}
	return dag.NewActionGraph([]dag.Action{
		{Name: ActionInit},
		{Name: ActionClean},
		{Name: ActionBuild, After: []string{ActionInit, ActionClean}},
		{Name: ActionTest, Requires: []dag.Requirement{{Name: ActionBuild}}},
		{Name: ActionRun, After: []string{ActionTest}, Requires: []dag.Requirement{{Name: ActionBuild, Unless: jarReady}}},
		{Name: ActionInspect, After: []string{ActionRun}, Requires: []dag.Requirement{{Name: ActionBuild, Unless: jarReady}}},
	})
}

// Plan returns the ordered actions for the requested tokens. No tokens
// means build. init is added when the main source root does not exist.
func (o *Orchestrator) Plan(tokens []string) ([]string, *dag.ActionGraph, error) {
	if len(tokens) == 0 {
		tokens = []string{ActionBuild}
	}
	present, err := fsutil.Exists(o.project.SourceDir)
	if err != nil {
		return nil, nil, err
	}
	if !present {
		o.log.V(1).Info("main source root missing, adding init", "dir", o.project.SourceDir)
		tokens = append([]string{ActionInit}, tokens...)
	}

	requested := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		requested[t] = true
	}
	g, err := o.graph(requested)
	if err != nil {
		return nil, nil, err
	}
	plan, err := g.Plan(tokens)
	if err != nil {
		return nil, nil, err
	}
	return plan, g, nil
}

// Run plans and executes the requested actions.
func (o *Orchestrator) Run(ctx context.Context, tokens []string) (*Result, error) {
	plan, g, err := o.Plan(tokens)
	if err != nil {
		return nil, err
	}
	res := &Result{Plan: plan, PlanHash: trace.PlanHash(plan)}
	o.exitCode = 0
	o.log.Info("executing plan", "actions", plan)

	ex := &dag.Executor{Graph: g, Sink: o.sink, Log: o.log}
	pr, runErr := ex.RunSerial(ctx, plan, o.step)
	if pr != nil {
		res.Executed = pr.ExecutionOrder
	}
	res.ExitCode = o.exitCode
	return res, runErr
}

func (o *Orchestrator) step(ctx context.Context, action string) error {
	switch action {
	case ActionInit:
		return o.initProject()
	case ActionClean:
		return o.clean()
	case ActionBuild:
		return o.build(ctx)
	case ActionTest:
		return o.test(ctx)
	case ActionRun:
		return o.run(ctx)
	case ActionInspect:
		return o.inspect()
	default:
		return fmt.Errorf("no implementation for action %q", action)
	}
}

func (o *Orchestrator) record(kind trace.EventKind, action, subject string, exitCode int) {
	trace.SafeRecord(o.sink, trace.Event{Kind: kind, Action: action, Subject: subject, ExitCode: exitCode})
}

// setExitCode keeps the first non-zero code of the test launcher. The
// program started by run always has the last word.
func (o *Orchestrator) setExitCode(action string, code int) {
	if action == ActionRun || o.exitCode == 0 {
		o.exitCode = code
	}
}

// rel shortens path for trace subjects. Paths outside the workdir are
// returned unchanged.
func (o *Orchestrator) rel(path string) string {
	r, err := filepath.Rel(o.project.Workdir, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return path
	}
	return filepath.ToSlash(r)
}
