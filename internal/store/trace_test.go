package store

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tempDir := t.TempDir()
	runID := "trace"

	tw, err := NewTraceWriter(tempDir, runID, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	now := time.Now()
	entries := []TraceEntry{
		{Generation: 0, Fitness: 0.91, Timestamp: now, Position: []float64{0.1, 0.2}},
		{Generation: 1, Fitness: 0.55, Timestamp: now.Add(time.Second), Position: []float64{0.15, 0.22}},
		{Generation: 2, Fitness: 0.31, Timestamp: now.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := ReadTrace(tempDir, runID)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i].Generation != entries[i].Generation || got[i].Fitness != entries[i].Fitness {
			t.Errorf("Entry %d mismatch: expected %+v, got %+v", i, entries[i], got[i])
		}
		if len(got[i].Position) != len(entries[i].Position) {
			t.Errorf("Entry %d position length: expected %d, got %d", i, len(entries[i].Position), len(got[i].Position))
		}
	}
}

func TestTraceWriter_OmitsEmptyPosition(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "lean", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.Write(TraceEntry{Generation: 3, Fitness: 0.5, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(tw.Path())
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if strings.Contains(string(data), "position") {
		t.Errorf("Expected position to be omitted, got %s", data)
	}
}

func TestTraceWriter_AppendAndTruncate(t *testing.T) {
	tempDir := t.TempDir()
	runID := "modes"

	write := func(appendMode bool, gen int) {
		t.Helper()
		tw, err := NewTraceWriter(tempDir, runID, appendMode)
		if err != nil {
			t.Fatalf("NewTraceWriter failed: %v", err)
		}
		if err := tw.Write(TraceEntry{Generation: gen, Fitness: 1, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := tw.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	write(false, 0)
	write(true, 1)
	got, err := ReadTrace(tempDir, runID)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries after append, got %d", len(got))
	}

	write(false, 5)
	got, err = ReadTrace(tempDir, runID)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != 1 || got[0].Generation != 5 {
		t.Errorf("Expected truncated trace with generation 5, got %+v", got)
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "flush", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	defer tw.Close()

	if err := tw.Write(TraceEntry{Generation: 1, Fitness: 0.4, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Readable while the writer is still open.
	got, err := ReadTrace(tempDir, "flush")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 flushed entry, got %d", len(got))
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "iter", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := tw.Write(TraceEntry{Generation: i, Fitness: 1 / float64(i+1), Timestamp: time.Now()}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(tempDir, "iter")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	for i := 0; i < 5; i++ {
		entry, err := tr.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if entry.Generation != i {
			t.Errorf("Expected generation %d, got %d", i, entry.Generation)
		}
	}
	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceReader_CorruptLine(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "corrupt", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := os.WriteFile(tw.Path(), []byte("{\"generation\":1}\nnot json\n"), 0644); err != nil {
		t.Fatalf("Failed to write trace: %v", err)
	}

	if _, err := ReadTrace(tempDir, "corrupt"); err == nil {
		t.Error("Expected error for corrupt line")
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "concurrent", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := tw.Write(TraceEntry{Generation: g*25 + i, Fitness: 1, Timestamp: time.Now()}); err != nil {
					t.Errorf("Write failed: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := ReadTrace(tempDir, "concurrent")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != 100 {
		t.Errorf("Expected 100 entries, got %d", len(got))
	}

	seen := make(map[int]bool)
	for _, e := range got {
		seen[e.Generation] = true
	}
	if len(seen) != 100 {
		t.Errorf("Expected 100 distinct generations, got %d", len(seen))
	}
}
