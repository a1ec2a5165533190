package store

import (
	"fmt"

	"github.com/openercot/pinion/internal/manifest"
)

// IntegrityError reports a fetched artifact whose content hash does not match
// the pinned value. This indicates tampering or corruption, never a transient
// failure, so it is not retried.
type IntegrityError struct {
	Source   string
	Expected manifest.Hash
	Actual   manifest.Hash
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity verification failed for %s: expected %s, got %s", e.Source, e.Expected, e.Actual)
}
