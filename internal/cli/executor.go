package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"buildweaver/internal/config"
	"buildweaver/internal/dag"
	"buildweaver/internal/logging"
	"buildweaver/internal/pipeline"
	"buildweaver/internal/trace"
)

// CLIResult is the outcome of an invocation.
type CLIResult struct {
	ExitCode int

	// Pipeline is nil when the invocation failed before planning.
	Pipeline *pipeline.Result
}

// Execute runs a parsed invocation.
//
// Exit codes: 0 on success, the exit code of a failed test or run process,
// 1 when an action fails, 2 for an invalid invocation, 3 for configuration
// errors and 4 for internal errors. The trace file, when requested, is
// written whatever the outcome.
func Execute(ctx context.Context, inv CLIInvocation, env Env) (res CLIResult, execErr error) {
	env = env.withDefaults()

	log, err := logging.New(inv.LogLevel, env.Stderr)
	if err != nil {
		return CLIResult{ExitCode: ExitInvalidInvocation}, err
	}

	project, err := config.Load(config.LoadOptions{
		Workdir:    inv.WorkDir,
		ConfigFile: inv.ConfigFile,
		Viper:      inv.overrides,
	})
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			return CLIResult{ExitCode: ExitConfigError}, err
		}
		return CLIResult{ExitCode: ExitInternalError}, err
	}
	log.V(1).Info("project loaded", "workdir", project.Workdir, "config", project.ConfigFile, "layout", project.Layout)

	var sink trace.Sink = trace.NopSink{}
	var rec *trace.Recorder
	if inv.Trace.Enabled {
		rec = trace.NewRecorder()
		sink = rec
	}

	orch, err := pipeline.New(pipeline.Options{
		Project:    project,
		Runner:     env.Runner,
		HTTPClient: env.HTTPClient,
		Stdout:     env.Stdout,
		Log:        log,
		Sink:       sink,
	})
	if err != nil {
		return CLIResult{ExitCode: ExitConfigError}, err
	}

	defer func() {
		if r := recover(); r != nil {
			res = CLIResult{ExitCode: ExitInternalError, Pipeline: res.Pipeline}
			execErr = fmt.Errorf("internal error: %v", r)
		}
	}()
	defer func() {
		if rec == nil {
			return
		}
		planHash := trace.PlanHash(nil)
		if res.Pipeline != nil {
			planHash = res.Pipeline.PlanHash
		}
		path := inv.Trace.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(project.Workdir, path)
		}
		if err := trace.WriteFile(path, rec.Trace(planHash)); err != nil {
			log.Error(err, "writing trace", "path", path)
		}
	}()

	result, runErr := orch.Run(ctx, inv.Actions)
	res.Pipeline = result
	switch {
	case runErr == nil:
		res.ExitCode = ExitSuccess
		if result != nil {
			res.ExitCode = result.ExitCode
		}
	case errors.Is(runErr, dag.ErrUnknownAction):
		res.ExitCode = ExitInvalidInvocation
	case errors.Is(runErr, dag.ErrInvalidGraph):
		res.ExitCode = ExitInternalError
	default:
		res.ExitCode = ExitPipelineFailure
	}
	return res, runErr
}
