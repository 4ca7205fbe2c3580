package core

import (
	"fmt"
	"path"
	"strings"
)

// Coordinate identifies a remote file by path-like segments, for example
// "org/apache/commons/commons-lang3/3.14.0/commons-lang3-3.14.0.jar".
//
// A Coordinate is a literal relative path: no version resolution is done.
type Coordinate string

// FileName returns the final path segment, which is the local cache key.
func (c Coordinate) FileName() string {
	s := string(c)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Validate rejects coordinates that cannot map to a single local file or
// that would escape the repository base when joined to it.
func (c Coordinate) Validate() error {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return fmt.Errorf("coordinate is empty")
	}
	if s != string(c) {
		return fmt.Errorf("coordinate %q has surrounding whitespace", string(c))
	}
	if strings.HasPrefix(s, "/") {
		return fmt.Errorf("coordinate %q must be relative", s)
	}
	if strings.HasSuffix(s, "/") {
		return fmt.Errorf("coordinate %q has no file name", s)
	}
	if strings.Contains(s, "\\") {
		return fmt.Errorf("coordinate %q must use forward slashes", s)
	}
	for _, seg := range strings.Split(s, "/") {
		switch seg {
		case "":
			return fmt.Errorf("coordinate %q has an empty segment", s)
		case ".", "..":
			return fmt.Errorf("coordinate %q has a relative segment", s)
		}
	}
	if path.Clean(s) != s {
		return fmt.Errorf("coordinate %q is not clean", s)
	}
	return nil
}

// String returns the coordinate text.
func (c Coordinate) String() string { return string(c) }

// Coordinates converts raw strings into Coordinates, preserving order.
func Coordinates(raw ...string) []Coordinate {
	out := make([]Coordinate, len(raw))
	for i, r := range raw {
		out[i] = Coordinate(r)
	}
	return out
}
