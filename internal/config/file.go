package config

import (
	"errors"
	"io"
	"os"

	digest "github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	"buildweaver/internal/core"
)

// FileName is the project file looked up in the workdir.
const FileName = "buildweaver.yaml"

// File is the on-disk shape of buildweaver.yaml. Absent fields keep their
// defaults.
type File struct {
	Layout           string       `yaml:"layout"`
	MainClass        string       `yaml:"mainClass"`
	Repository       string       `yaml:"repository"`
	Dirs             Dirs         `yaml:"dirs"`
	Jar              string       `yaml:"jar"`
	Dependencies     []Dependency `yaml:"dependencies"`
	TestDependencies []Dependency `yaml:"testDependencies"`
	Launcher         string       `yaml:"launcher"`
	Compiler         ToolFile     `yaml:"compiler"`
	Runtime          ToolFile     `yaml:"runtime"`
	Verify           *bool        `yaml:"verify"`
}

// Dirs overrides the layout roots.
type Dirs struct {
	Source string `yaml:"source"`
	Test   string `yaml:"test"`
	Output string `yaml:"output"`
	Lib    string `yaml:"lib"`
}

// ToolFile configures an external tool.
type ToolFile struct {
	// Command is a shell-words string, e.g. "javac -J-Xmx512m".
	Command string   `yaml:"command"`
	Flags   []string `yaml:"flags"`
}

// Dependency is a coordinate with an optional pinned digest. In YAML it is
// either a plain coordinate string or a {coordinate, digest} mapping.
type Dependency struct {
	Coordinate core.Coordinate `yaml:"coordinate"`
	Digest     digest.Digest   `yaml:"digest,omitempty"`
}

func (d *Dependency) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*d = Dependency{Coordinate: core.Coordinate(s)}
		return nil
	}
	type plain Dependency
	return node.Decode((*plain)(d))
}

// ReadFile parses a project file. Unknown keys are rejected.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return &out, nil
		}
		return nil, err
	}
	return &out, nil
}
