package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []ProgressEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	var events []ProgressEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e ProgressEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("failed to parse line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestProgressLogger_Log(t *testing.T) {
	tmpDir := t.TempDir()

	logger := NewProgressLogger(tmpDir)
	if err := logger.Log("test_event", map[string]interface{}{"key": "value"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := readEvents(t, filepath.Join(tmpDir, ProgressFileName))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Event != "test_event" {
		t.Errorf("event mismatch: got %s, want test_event", events[0].Event)
	}
	if events[0].Data["key"] != "value" {
		t.Errorf("data mismatch: got %v, want value", events[0].Data["key"])
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}

func TestProgressLogger_RunLifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	logger := NewProgressLogger(tmpDir)

	logger.RunStarted("run-1", 50, 3)
	logger.TaskStarted("M1.1", "ralph")
	logger.TaskNotUpdated("M1.1", 1)
	logger.Escalated("M1.1", "ralph", "eddie")
	logger.TaskResolved(Completion{TaskID: "M1.1", Status: StatusDone, Iterations: 2, DurationSeconds: 90})
	logger.RunFinished(2, "no_tasks", 3*time.Second)

	events := readEvents(t, logger.Path())
	want := []string{
		EventRunStarted,
		EventTaskStarted,
		EventTaskNotUpdated,
		EventEscalated,
		EventTaskResolved,
		EventRunFinished,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, e := range events {
		if e.Event != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.Event, want[i])
		}
	}

	// JSON numbers decode as float64
	if events[4].Data["iterations"] != float64(2) {
		t.Errorf("iterations = %v, want 2", events[4].Data["iterations"])
	}
	if events[5].Data["duration_ms"] != float64(3000) {
		t.Errorf("duration_ms = %v, want 3000", events[5].Data["duration_ms"])
	}
}
