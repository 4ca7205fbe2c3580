package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"buildweaver/internal/config"
	"buildweaver/internal/pipeline"
)

const (
	ExitSuccess           = 0
	ExitPipelineFailure   = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

type TraceConfig struct {
	Enabled bool
	Path    string
}

// CLIInvocation is the parsed description of a run.
//
// Paths are kept as given; they are resolved against the project workdir
// once the configuration is loaded.
type CLIInvocation struct {
	WorkDir    string
	ConfigFile string
	LogLevel   string
	Trace      TraceConfig

	// Actions are the positional action tokens in the order given.
	Actions []string

	// overrides carries BUILDWEAVER_* variables and changed flags into
	// config.Load.
	overrides *viper.Viper
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// newRootCommand builds the cobra command. parsed is called with the
// invocation instead of running anything, so parsing stays side-effect free.
func newRootCommand(parsed func(CLIInvocation) error) *cobra.Command {
	v := config.NewViper()
	cmd := &cobra.Command{
		Use:   "buildweaver [flags] [init|clean|build|test|run|inspect]...",
		Short: "Minimal build orchestrator for Java projects",
		Long: "buildweaver fetches declared dependencies, compiles the sources, packages an executable jar\n" +
			"and can run or test it. Actions always execute in the order init, clean, build, test, run, inspect.",
		ValidArgs:     pipeline.Actions,
		Args:          validActions,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := CLIInvocation{
				WorkDir:    v.GetString("workdir"),
				ConfigFile: v.GetString("config"),
				LogLevel:   v.GetString("log-level"),
				Actions:    append([]string(nil), args...),
				overrides:  v,
			}
			if tracePath := strings.TrimSpace(v.GetString("trace")); tracePath != "" {
				inv.Trace = TraceConfig{Enabled: true, Path: filepath.Clean(tracePath)}
			}
			return parsed(inv)
		},
	}
	cmd.Example = `  # Fetch dependencies, compile and package lib/app.jar
  buildweaver

  # Rebuild from scratch and run the main class
  buildweaver clean run

  # Use the src/main + src/test layout and record a trace
  buildweaver --layout split --trace trace.json test`

	flags := cmd.Flags()
	flags.StringP("workdir", "C", "", "Project directory (defaults to the current directory)")
	flags.String("config", "", "Project file (defaults to buildweaver.yaml in the workdir)")
	flags.String("layout", "", "Directory layout: single or split")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("trace", "", "Write the execution trace as JSON to this path")
	bindViper(v, flags)

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	return cmd
}

// bindViper makes every flag readable through v. Only changed flags count
// as set, so BUILDWEAVER_* variables still apply when a flag is omitted.
func bindViper(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			cobra.CheckErr(err)
		}
	})
}

func validActions(_ *cobra.Command, args []string) error {
	for _, a := range args {
		known := false
		for _, name := range pipeline.Actions {
			if a == name {
				known = true
				break
			}
		}
		if !known {
			return invalidInvocationf("unknown action %q (expected one of %s)", a, strings.Join(pipeline.Actions, ", "))
		}
	}
	return nil
}

// ParseInvocation parses CLI arguments into a CLIInvocation. It returns
// pflag.ErrHelp when help was requested and printed.
func ParseInvocation(args []string) (CLIInvocation, error) {
	var inv CLIInvocation
	ran := false
	cmd := newRootCommand(func(parsed CLIInvocation) error {
		inv = parsed
		ran = true
		return nil
	})
	if args == nil {
		// cobra falls back to os.Args for nil.
		args = []string{}
	}
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		var invErr *InvocationError
		if errors.As(err, &invErr) {
			return CLIInvocation{}, err
		}
		return CLIInvocation{}, invalidInvocationf("%v", err)
	}
	if !ran {
		return CLIInvocation{}, pflag.ErrHelp
	}
	return inv, nil
}

// ExitCode extracts a semantic exit code from a ParseInvocation error.
// If the error is not a known invocation error, it returns ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return ExitSuccess
	}
	return ExitInternalError
}
