package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/plucktune/internal/config"
	"github.com/cwbudde/plucktune/internal/store"
)

// withDataDir points the commands at a temporary data directory.
func withDataDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	original := dataDir
	dataDir = tmpDir
	t.Cleanup(func() { dataDir = original })
	return tmpDir
}

func saveTestRun(t *testing.T, dir, runID string, age time.Duration) *store.FSStore {
	t.Helper()
	s, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	cfg := config.Default()
	cfg.RefPath = "ideal.wav"
	cfg.Dimension = 3
	cp := store.NewCheckpoint(runID, []float64{0.1, 0.2, 0.3}, 0.05, 0.9, 40, cfg)
	cp.Timestamp = time.Now().Add(-age)

	if err := s.SaveCheckpoint(runID, cp); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	return s
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	return cmd, &out
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 0, 7)
	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].RunID != "run1" || toDelete[1].RunID != "run4" {
		t.Errorf("Expected run1 and run4, got %s and %s", toDelete[0].RunID, toDelete[1].RunID)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0)
	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	// Oldest first.
	if toDelete[0].RunID != "run4" || toDelete[1].RunID != "run1" {
		t.Errorf("Expected run4 and run1, got %s and %s", toDelete[0].RunID, toDelete[1].RunID)
	}
}

func TestSelectRunsForDeletion_CombinedHasNoDuplicates(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "old", Timestamp: now.AddDate(0, 0, -30)},
		{RunID: "mid", Timestamp: now.AddDate(0, 0, -3)},
		{RunID: "new", Timestamp: now},
	}

	toDelete := selectRunsForDeletion(infos, 1, 7)
	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].RunID != "old" || toDelete[1].RunID != "mid" {
		t.Errorf("Unexpected selection: %+v", toDelete)
	}
}

func TestGetDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 50), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	size, err := getDirSize(dir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size != 150 {
		t.Errorf("Expected 150 bytes, got %d", size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %s, want %s", tt.bytes, got, tt.want)
		}
	}
}

func TestRunsListCommand(t *testing.T) {
	dir := withDataDir(t)

	cmd, out := testCommand()
	if err := runListRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No runs found") {
		t.Errorf("Unexpected output for empty store: %s", out.String())
	}

	saveTestRun(t, dir, "a1b2c3d4", 0)
	cmd, out = testCommand()
	if err := runListRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "a1b2c3d4") {
		t.Errorf("Expected run ID in listing: %s", out.String())
	}
}

func TestRunsShowCommand(t *testing.T) {
	dir := withDataDir(t)
	saveTestRun(t, dir, "show", 0)

	cmd, out := testCommand()
	if err := runShowRun(cmd, []string{"show"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "0.1,0.2,0.3") {
		t.Errorf("Expected coefficients in output: %s", out.String())
	}

	if err := runShowRun(cmd, []string{"missing"}); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	withDataDir(t)
	keepLast, olderThanDays = 0, 0

	if err := runCleanRuns(nil, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestRunsCleanCommand_WithForce(t *testing.T) {
	dir := withDataDir(t)
	s := saveTestRun(t, dir, "old-run", 30*24*time.Hour)
	saveTestRun(t, dir, "new-run", 0)

	keepLast, olderThanDays, forceClean = 0, 7, true
	t.Cleanup(func() { keepLast, olderThanDays, forceClean = 0, 0, false })

	cmd, _ := testCommand()
	if err := runCleanRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := s.LoadCheckpoint("old-run"); err == nil {
		t.Error("Expected old run to be deleted")
	}
	if _, err := s.LoadCheckpoint("new-run"); err != nil {
		t.Errorf("Expected new run to be kept, got %v", err)
	}
}

func TestRunsCleanCommand_DeclinedConfirmation(t *testing.T) {
	dir := withDataDir(t)
	s := saveTestRun(t, dir, "old-run", 30*24*time.Hour)

	keepLast, olderThanDays, forceClean = 0, 7, false
	t.Cleanup(func() { keepLast, olderThanDays = 0, 0 })

	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader("n\n"))
	if err := runCleanRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "Aborted") {
		t.Errorf("Expected abort message: %s", out.String())
	}
	if _, err := s.LoadCheckpoint("old-run"); err != nil {
		t.Errorf("Expected run to survive, got %v", err)
	}
}
