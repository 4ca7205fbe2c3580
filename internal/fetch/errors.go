package fetch

import (
	"fmt"

	digest "github.com/opencontainers/go-digest"

	"buildweaver/internal/core"
)

// StatusError reports a non-2xx response from the repository.
type StatusError struct {
	Coordinate core.Coordinate
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: GET %s returned HTTP %d", e.Coordinate, e.URL, e.StatusCode)
}

// IntegrityError reports a freshly downloaded artifact whose digest differs
// from the pinned or locked digest.
type IntegrityError struct {
	Coordinate core.Coordinate
	Expected   digest.Digest
	Actual     digest.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, downloaded %s", e.Coordinate, e.Expected, e.Actual)
}
