package core

import (
	"os"
	"strings"

	digest "github.com/opencontainers/go-digest"
)

// LocalArtifact is a Coordinate resolved to a file on disk.
//
// Lifetime is the lifetime of the lib directory; the file name is the cache
// key. Digest is empty when integrity verification is disabled.
type LocalArtifact struct {
	Coordinate Coordinate
	Path       string
	Digest     digest.Digest
}

// Paths returns the local paths of artifacts in order.
func Paths(artifacts []LocalArtifact) []string {
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		out[i] = a.Path
	}
	return out
}

// FileDigest returns the sha256 digest of the file at path.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.SHA256.FromReader(f)
}

// BuildArtifact is the jar produced by the package step. It is rewritten in
// full every time and never appended to.
type BuildArtifact struct {
	Path      string
	MainClass string
}

// Exists reports whether the archive file is present.
func (b BuildArtifact) Exists() bool {
	if strings.TrimSpace(b.Path) == "" {
		return false
	}
	info, err := os.Stat(b.Path)
	return err == nil && !info.IsDir()
}
