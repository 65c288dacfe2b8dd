package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ProgressFileName is the JSON Lines event log inside the work directory.
const ProgressFileName = ".wiggum-progress.log"

// Event type constants for progress logging.
const (
	EventRunStarted     = "run_started"
	EventRunFinished    = "run_finished"
	EventTaskStarted    = "task_started"
	EventTaskResolved   = "task_resolved"
	EventTaskNotUpdated = "task_not_updated"
	EventEscalated      = "escalated"
)

// ProgressEvent represents a single progress log entry.
type ProgressEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ProgressLogger appends runner events to a JSON Lines file.
type ProgressLogger struct {
	path string
	now  func() time.Time
}

// NewProgressLogger creates a progress logger writing into workDir.
func NewProgressLogger(workDir string) *ProgressLogger {
	return &ProgressLogger{
		path: filepath.Join(workDir, ProgressFileName),
		now:  time.Now,
	}
}

// Path returns the log file location.
func (p *ProgressLogger) Path() string {
	return p.path
}

// Log appends a progress event to the log file.
func (p *ProgressLogger) Log(event string, data map[string]interface{}) error {
	entry := ProgressEvent{
		Timestamp: p.now(),
		Event:     event,
		Data:      data,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	jsonBytes = append(jsonBytes, '\n')

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(jsonBytes)
	return err
}

// RunStarted logs a run_started event.
func (p *ProgressLogger) RunStarted(runID string, budget, remaining int) error {
	return p.Log(EventRunStarted, map[string]interface{}{
		"run_id":    runID,
		"budget":    budget,
		"remaining": remaining,
	})
}

// TaskStarted logs a task_started event.
func (p *ProgressLogger) TaskStarted(taskID, level string) error {
	return p.Log(EventTaskStarted, map[string]interface{}{
		"task_id": taskID,
		"level":   level,
	})
}

// TaskResolved logs a task_resolved event once a task leaves todo.
func (p *ProgressLogger) TaskResolved(c Completion) error {
	return p.Log(EventTaskResolved, map[string]interface{}{
		"task_id":          c.TaskID,
		"status":           c.Status,
		"iterations":       c.Iterations,
		"duration_seconds": c.DurationSeconds,
	})
}

// TaskNotUpdated logs an iteration that left the task in todo.
func (p *ProgressLogger) TaskNotUpdated(taskID string, attempt int) error {
	return p.Log(EventTaskNotUpdated, map[string]interface{}{
		"task_id": taskID,
		"attempt": attempt,
	})
}

// Escalated logs a capability escalation.
func (p *ProgressLogger) Escalated(taskID, from, to string) error {
	return p.Log(EventEscalated, map[string]interface{}{
		"task_id": taskID,
		"from":    from,
		"to":      to,
	})
}

// RunFinished logs a run_finished event with summary figures.
func (p *ProgressLogger) RunFinished(iterations int, reason string, duration time.Duration) error {
	return p.Log(EventRunFinished, map[string]interface{}{
		"iterations":  iterations,
		"reason":      reason,
		"duration_ms": duration.Milliseconds(),
	})
}
