// Package store persists tuning runs on disk: one directory per run holding
// the latest checkpoint, a JSONL fitness trace and the best rendered pluck.
package store

import (
	"strings"

	"github.com/google/uuid"
)

// Store is the run persistence contract used by the tune pipeline and the
// runs command. Implementations must be safe for concurrent use.
//
// Load and Delete return ErrNotFound when the run does not exist. Other
// failures are wrapped with context.
type Store interface {
	// SaveCheckpoint atomically replaces the checkpoint of runID.
	SaveCheckpoint(runID string, checkpoint *Checkpoint) error

	// LoadCheckpoint returns the latest checkpoint of runID.
	LoadCheckpoint(runID string) (*Checkpoint, error)

	// ListRuns returns summaries of all runs with a readable checkpoint.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run directory with every artifact in it.
	DeleteRun(runID string) error
}

// NewRunID returns a fresh run identifier. Only the first block of a random
// UUID is kept so IDs stay short enough to type.
func NewRunID() string {
	id := uuid.NewString()
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError names the missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
