// Package config resolves the project settings for one invocation.
//
// Settings are layered: built-in defaults reproduce the classic single
// directory layout, buildweaver.yaml overrides them, BUILDWEAVER_*
// environment variables override the file and explicitly set flags
// override everything.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/viper"

	"buildweaver/internal/compile"
	"buildweaver/internal/core"
	"buildweaver/internal/fetch"
	"buildweaver/internal/process"
)

// Layout selects the directory structure.
type Layout string

const (
	LayoutSingle Layout = "single"
	LayoutSplit  Layout = "split"
)

const (
	DefaultMainClass = "Main"
	DefaultJarName   = "app.jar"

	// LauncherArtifact names the JUnit console launcher jar. The test
	// dependency whose file name starts with it is run with java -jar
	// unless launcher is set explicitly.
	LauncherArtifact = "junit-platform-console-standalone"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BUILDWEAVER"
)

var (
	// DefaultDependencies are used when the project file declares none.
	DefaultDependencies = []string{
		"org/apache/commons/commons-lang3/3.14.0/commons-lang3-3.14.0.jar",
	}

	// DefaultTestDependencies provide the JUnit console launcher.
	DefaultTestDependencies = []string{
		"org/junit/platform/junit-platform-console-standalone/1.10.1/junit-platform-console-standalone-1.10.1.jar",
	}

	DefaultRuntimeFlags = []string{"--enable-preview"}
)

// Error is a configuration problem. The CLI maps it to its own exit code.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Tool is a resolved external tool invocation prefix.
type Tool struct {
	Command []string
	Flags   []string
}

// Project is the fully resolved configuration. All paths are absolute.
type Project struct {
	Workdir    string
	ConfigFile string

	Layout     Layout
	MainClass  string
	Repository string

	SourceDir     string
	TestSourceDir string
	OutputDir     string
	TestOutputDir string
	LibDir        string
	TestLibDir    string
	Jar           string
	Lockfile      string

	Dependencies     []Dependency
	TestDependencies []Dependency

	// Launcher is the test dependency executed by the test action. Empty
	// when none is declared.
	Launcher core.Coordinate

	Compiler Tool
	Runtime  Tool

	Verify bool
}

// Coordinates returns the coordinates of deps in order.
func Coordinates(deps []Dependency) []core.Coordinate {
	out := make([]core.Coordinate, len(deps))
	for i, d := range deps {
		out[i] = d.Coordinate
	}
	return out
}

// Pins returns the pinned digests declared for main and test dependencies.
func (p *Project) Pins() map[core.Coordinate]digest.Digest {
	pins := map[core.Coordinate]digest.Digest{}
	for _, deps := range [][]Dependency{p.Dependencies, p.TestDependencies} {
		for _, d := range deps {
			if d.Digest != "" {
				pins[d.Coordinate] = d.Digest
			}
		}
	}
	return pins
}

// Artifact returns the jar produced by the build.
func (p *Project) Artifact() core.BuildArtifact {
	return core.BuildArtifact{Path: p.Jar, MainClass: p.MainClass}
}

// NewViper returns a viper instance reading BUILDWEAVER_* variables.
// Nested keys map "." and "-" to "_", so dirs.source is read from
// BUILDWEAVER_DIRS_SOURCE.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Workdir is the project root. Empty means the current directory.
	Workdir string

	// ConfigFile is an explicit project file. It must exist when set.
	// Otherwise FileName in the workdir is used when present.
	ConfigFile string

	// Viper supplies environment and flag overrides. Nil means NewViper().
	Viper *viper.Viper
}

// Load resolves the project configuration.
func Load(opts LoadOptions) (*Project, error) {
	v := opts.Viper
	if v == nil {
		v = NewViper()
	}

	workdir, err := resolveWorkdir(opts.Workdir)
	if err != nil {
		return nil, &Error{Err: err}
	}

	file := &File{}
	path := opts.ConfigFile
	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		if path, err = expandPath(workdir, path); err != nil {
			return nil, &Error{Err: err}
		}
		if file, err = ReadFile(path); err != nil {
			return nil, &Error{Path: path, Err: err}
		}
	} else {
		candidate := filepath.Join(workdir, FileName)
		file, err = ReadFile(candidate)
		switch {
		case err == nil:
			path = candidate
		case errors.Is(err, os.ErrNotExist):
			file = &File{}
		default:
			return nil, &Error{Path: candidate, Err: err}
		}
	}

	applyOverrides(v, file)

	p, err := resolve(workdir, file)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	p.ConfigFile = path
	if err := p.Validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return p, nil
}

func resolveWorkdir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("expanding workdir %q: %w", dir, err)
	}
	return filepath.Abs(expanded)
}

func expandPath(workdir, p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", p, err)
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Join(workdir, expanded), nil
}

// applyOverrides copies environment and explicitly set flag values over
// the file. Only keys viper reports as set are applied.
func applyOverrides(v *viper.Viper, f *File) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("layout", &f.Layout)
	str("mainClass", &f.MainClass)
	str("repository", &f.Repository)
	str("jar", &f.Jar)
	str("dirs.source", &f.Dirs.Source)
	str("dirs.test", &f.Dirs.Test)
	str("dirs.output", &f.Dirs.Output)
	str("dirs.lib", &f.Dirs.Lib)
	str("compiler.command", &f.Compiler.Command)
	str("runtime.command", &f.Runtime.Command)
	str("launcher", &f.Launcher)

	if v.IsSet("verify") {
		b := v.GetBool("verify")
		f.Verify = &b
	}
	deps := func(key string, dst *[]Dependency) {
		if !v.IsSet(key) {
			return
		}
		raw := v.GetStringSlice(key)
		out := make([]Dependency, 0, len(raw))
		for _, c := range raw {
			out = append(out, Dependency{Coordinate: core.Coordinate(c)})
		}
		*dst = out
	}
	deps("dependencies", &f.Dependencies)
	deps("testDependencies", &f.TestDependencies)
}

func resolve(workdir string, f *File) (*Project, error) {
	p := &Project{
		Workdir:    workdir,
		Layout:     Layout(orDefault(f.Layout, string(LayoutSingle))),
		MainClass:  orDefault(f.MainClass, DefaultMainClass),
		Repository: orDefault(f.Repository, fetch.DefaultRepository),
		Verify:     true,
	}
	if f.Verify != nil {
		p.Verify = *f.Verify
	}

	src := orDefault(f.Dirs.Source, "src")
	out := orDefault(f.Dirs.Output, "out")
	lib := orDefault(f.Dirs.Lib, "lib")

	var mainSrc, testSrc, mainOut, testOut string
	switch p.Layout {
	case LayoutSplit:
		mainSrc = filepath.Join(src, "main")
		testSrc = orDefault(f.Dirs.Test, filepath.Join(src, "test"))
		mainOut = filepath.Join(out, "main")
		testOut = filepath.Join(out, "test")
	default:
		mainSrc = src
		testSrc = orDefault(f.Dirs.Test, "test")
		mainOut = out
		testOut = out + "-test"
	}

	dirs := []struct {
		dst *string
		raw string
	}{
		{&p.SourceDir, mainSrc},
		{&p.TestSourceDir, testSrc},
		{&p.OutputDir, mainOut},
		{&p.TestOutputDir, testOut},
		{&p.LibDir, lib},
		{&p.TestLibDir, filepath.Join(lib, "test")},
		{&p.Jar, orDefault(f.Jar, filepath.Join(lib, DefaultJarName))},
	}
	for _, d := range dirs {
		resolved, err := expandPath(workdir, d.raw)
		if err != nil {
			return nil, err
		}
		*d.dst = resolved
	}
	p.Lockfile = filepath.Join(p.LibDir, fetch.LockfileName)

	p.Dependencies = f.Dependencies
	if p.Dependencies == nil {
		p.Dependencies = plainDependencies(DefaultDependencies)
	}
	p.TestDependencies = f.TestDependencies
	if p.TestDependencies == nil {
		p.TestDependencies = plainDependencies(DefaultTestDependencies)
	}

	p.Launcher = core.Coordinate(strings.TrimSpace(f.Launcher))
	if p.Launcher == "" {
		p.Launcher = detectLauncher(p.TestDependencies)
	}

	var err error
	if p.Compiler, err = resolveTool(f.Compiler, "javac", compile.DefaultFlags); err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	if p.Runtime, err = resolveTool(f.Runtime, "java", DefaultRuntimeFlags); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	return p, nil
}

func resolveTool(t ToolFile, defaultCommand string, defaultFlags []string) (Tool, error) {
	cmd, err := process.Parse(orDefault(t.Command, defaultCommand))
	if err != nil {
		return Tool{}, err
	}
	flags := t.Flags
	if flags == nil {
		flags = append([]string(nil), defaultFlags...)
	}
	return Tool{Command: cmd, Flags: flags}, nil
}

// detectLauncher returns the first test dependency that is the console
// launcher jar.
func detectLauncher(deps []Dependency) core.Coordinate {
	for _, d := range deps {
		if strings.HasPrefix(d.Coordinate.FileName(), LauncherArtifact) {
			return d.Coordinate
		}
	}
	return ""
}

func plainDependencies(raw []string) []Dependency {
	out := make([]Dependency, len(raw))
	for i, c := range raw {
		out[i] = Dependency{Coordinate: core.Coordinate(c)}
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Validate checks the layout, the main class, every coordinate and pinned
// digest, and the repository URL.
func (p *Project) Validate() error {
	var problems []string
	switch p.Layout {
	case LayoutSingle, LayoutSplit:
	default:
		problems = append(problems, fmt.Sprintf("layout %q must be %q or %q", p.Layout, LayoutSingle, LayoutSplit))
	}
	if !validClassName(p.MainClass) {
		problems = append(problems, fmt.Sprintf("mainClass %q is not a valid class name", p.MainClass))
	}
	if u, err := url.Parse(p.Repository); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("repository %q must be an http(s) URL", p.Repository))
	}
	for _, deps := range [][]Dependency{p.Dependencies, p.TestDependencies} {
		for _, d := range deps {
			if err := d.Coordinate.Validate(); err != nil {
				problems = append(problems, err.Error())
			}
			if d.Digest != "" {
				if err := d.Digest.Validate(); err != nil {
					problems = append(problems, fmt.Sprintf("digest for %s: %v", d.Coordinate, err))
				}
			}
		}
	}
	if p.Launcher != "" && !declares(p.TestDependencies, p.Launcher) {
		problems = append(problems, fmt.Sprintf("launcher %s is not listed in testDependencies", p.Launcher))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func declares(deps []Dependency, c core.Coordinate) bool {
	for _, d := range deps {
		if d.Coordinate == c {
			return true
		}
	}
	return false
}

// validClassName accepts dotted Java identifiers such as com.acme.Main.
func validClassName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_' || r == '$':
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case i > 0 && r >= '0' && r <= '9':
			case r > 127:
			default:
				return false
			}
		}
	}
	return true
}
