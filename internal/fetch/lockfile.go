package fetch

import (
	"os"
	"sort"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"buildweaver/internal/core"
	"buildweaver/internal/fsutil"
)

// LockfileName is the file recorded in the lib root.
const LockfileName = "buildweaver.lock"

const lockfileVersion = 1

// Lockfile maps coordinates to the sha256 digest of their contents.
type Lockfile struct {
	Version   int                              `yaml:"version"`
	Artifacts map[core.Coordinate]digest.Digest `yaml:"artifacts"`

	dirty bool
}

// LoadLockfile reads path. A missing file yields an empty lockfile.
func LoadLockfile(path string) (*Lockfile, error) {
	lf := &Lockfile{Version: lockfileVersion, Artifacts: map[core.Coordinate]digest.Digest{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, errors.Wrapf(err, "reading lockfile %s", path)
	}
	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, errors.Wrapf(err, "parsing lockfile %s", path)
	}
	if lf.Version != lockfileVersion {
		return nil, errors.Errorf("lockfile %s: unsupported version %d", path, lf.Version)
	}
	if lf.Artifacts == nil {
		lf.Artifacts = map[core.Coordinate]digest.Digest{}
	}
	for coord, d := range lf.Artifacts {
		if err := d.Validate(); err != nil {
			return nil, errors.Wrapf(err, "lockfile %s: digest for %s", path, coord)
		}
	}
	return lf, nil
}

// Lookup returns the recorded digest for c.
func (l *Lockfile) Lookup(c core.Coordinate) (digest.Digest, bool) {
	d, ok := l.Artifacts[c]
	return d, ok
}

// Record sets the digest for c and marks the lockfile dirty when it changed.
func (l *Lockfile) Record(c core.Coordinate, d digest.Digest) {
	if cur, ok := l.Artifacts[c]; ok && cur == d {
		return
	}
	l.Artifacts[c] = d
	l.dirty = true
}

// Coordinates returns the recorded coordinates in sorted order.
func (l *Lockfile) Coordinates() []core.Coordinate {
	out := make([]core.Coordinate, 0, len(l.Artifacts))
	for c := range l.Artifacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Save writes the lockfile atomically when it has unsaved changes.
func (l *Lockfile) Save(path string) error {
	if !l.dirty {
		return nil
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return errors.Wrap(err, "encoding lockfile")
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing lockfile %s", path)
	}
	l.dirty = false
	return nil
}
