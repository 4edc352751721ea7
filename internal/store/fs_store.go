package store

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

const (
	runsDirName    = "runs"
	checkpointFile = "checkpoint.json"
	traceFile      = "trace.jsonl"
	pluckFile      = "pluck.wav"
)

// FSStore keeps runs under <baseDir>/runs/<runID>/. Writes go through a temp
// file and rename, so no locking is needed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates baseDir if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the data directory the store was opened on.
func (s *FSStore) BaseDir() string {
	return s.baseDir
}

// RunDir returns the directory of a run. It may not exist yet.
func (s *FSStore) RunDir(runID string) string {
	return runDir(s.baseDir, runID)
}

// PluckPath returns where the best rendered tone of a run is written.
func (s *FSStore) PluckPath(runID string) string {
	return filepath.Join(s.RunDir(runID), pluckFile)
}

// TracePath returns the fitness trace file of a run.
func (s *FSStore) TracePath(runID string) string {
	return filepath.Join(s.RunDir(runID), traceFile)
}

func (s *FSStore) checkpointPath(runID string) string {
	return filepath.Join(s.RunDir(runID), checkpointFile)
}

// checkRunID rejects IDs that would escape the runs directory.
func checkRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if runID != filepath.Base(runID) || runID == "." || runID == ".." {
		return fmt.Errorf("invalid runID %q", runID)
	}
	return nil
}

func runDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runsDirName, runID)
}

// SaveCheckpoint validates and atomically writes checkpoint.json.
func (s *FSStore) SaveCheckpoint(runID string, checkpoint *Checkpoint) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if err := checkpoint.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.RunDir(runID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	finalPath := s.checkpointPath(runID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	slog.Debug("Checkpoint saved", "runID", runID, "generation", checkpoint.Generation, "path", finalPath)
	return nil
}

// LoadCheckpoint reads checkpoint.json of a run.
func (s *FSStore) LoadCheckpoint(runID string) (*Checkpoint, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}

	path := s.checkpointPath(runID)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{RunID: runID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}

	slog.Debug("Checkpoint loaded", "runID", runID, "path", path)
	return &checkpoint, nil
}

// ListRuns returns run summaries, newest first. Directories without a
// readable checkpoint are skipped.
func (s *FSStore) ListRuns() ([]RunInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, runsDirName))
	if errors.Is(err, fs.ErrNotExist) {
		return []RunInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := make([]RunInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		checkpoint, err := s.LoadCheckpoint(entry.Name())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("Failed to load checkpoint for listing", "runID", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, checkpoint.ToInfo())
	}

	slices.SortFunc(infos, func(a, b RunInfo) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory.
func (s *FSStore) DeleteRun(runID string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}

	dir := s.RunDir(runID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "runID", runID, "path", dir)
	return nil
}
