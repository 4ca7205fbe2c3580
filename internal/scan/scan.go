// Package scan enumerates paths under a root directory.
//
// It builds the SourceSet for compilation (files ending in ".java") and the
// full entry list of a compiled output tree for archiving.
package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"buildweaver/internal/core"
)

// Filter decides whether a walked path is returned.
type Filter func(path string, d fs.DirEntry) bool

// All accepts every file and directory.
func All() Filter {
	return func(string, fs.DirEntry) bool { return true }
}

// HasExtension accepts regular files whose name ends with ext.
// Directories never match, even when their name ends with ext.
func HasExtension(ext string) Filter {
	return func(path string, d fs.DirEntry) bool {
		return !d.IsDir() && strings.HasSuffix(path, ext)
	}
}

// FilesOnly narrows f to non-directory entries.
func FilesOnly(f Filter) Filter {
	return func(path string, d fs.DirEntry) bool {
		return !d.IsDir() && f(path, d)
	}
}

// Scan walks root recursively and returns every path under it that
// satisfies filter. The root itself is never returned.
//
// Order is filepath.WalkDir order: lexical within each directory, parents
// before children. A nil filter is treated as All.
func Scan(root string, filter Filter) ([]string, error) {
	if filter == nil {
		filter = All()
	}
	root = filepath.Clean(root)
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if filter(path, d) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return out, nil
}

// Sources returns the SourceSet of files under root with the given extension.
func Sources(root, ext string) (core.SourceSet, error) {
	files, err := Scan(root, HasExtension(ext))
	if err != nil {
		return core.SourceSet{}, err
	}
	return core.SourceSet{Root: root, Files: files}, nil
}
