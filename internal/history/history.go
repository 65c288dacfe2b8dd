// Package history records task completions and derives velocity, ETA, drift
// and stall figures from them.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the history file inside the work directory.
const FileName = ".wiggum-history.json"

// DefaultRecentWindow is the number of completions used for recent velocity.
const DefaultRecentWindow = 3

// Terminal completion statuses.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Completion records one task leaving the todo state.
type Completion struct {
	TaskID          string    `json:"task_id"`
	TaskTitle       string    `json:"task_title"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Iterations      int       `json:"iterations"`
	Status          string    `json:"status"`
}

// Baseline is the ETA captured the first time a run starts with work left.
type Baseline struct {
	ETA       time.Time `json:"eta"`
	Remaining int       `json:"remaining"`
}

type document struct {
	Completions []Completion `json:"completions"`
	Baseline    *Baseline    `json:"baseline"`
}

// Stats summarises the completion log.
type Stats struct {
	TotalCompletions      int     `json:"total_completions"`
	Successful            int     `json:"successful"`
	Failed                int     `json:"failed"`
	AvgDurationMinutes    float64 `json:"avg_duration_minutes"`
	RecentVelocityMinutes float64 `json:"recent_velocity_minutes"`
}

// Tracker owns the completion log and baseline for one work directory.
type Tracker struct {
	path        string
	now         func() time.Time
	completions []Completion
	baseline    *Baseline
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the clock used for ETA predictions.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns an empty tracker persisting to FileName in workDir.
// Call Load to read existing history.
func NewTracker(workDir string, opts ...Option) *Tracker {
	t := &Tracker{
		path: filepath.Join(workDir, FileName),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Path returns the history file location.
func (t *Tracker) Path() string {
	return t.path
}

// Load reads the history file. A missing or malformed file leaves the tracker
// with an empty log; only unexpected I/O failures are returned.
func (t *Tracker) Load() error {
	t.completions = nil
	t.baseline = nil

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	t.completions = doc.Completions
	if doc.Baseline != nil && !doc.Baseline.ETA.IsZero() {
		t.baseline = doc.Baseline
	}
	return nil
}

// Save writes the history file atomically.
func (t *Tracker) Save() error {
	doc := document{Completions: t.completions, Baseline: t.baseline}
	if doc.Completions == nil {
		doc.Completions = []Completion{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", t.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Completions returns a copy of the completion log in recording order.
func (t *Tracker) Completions() []Completion {
	out := make([]Completion, len(t.completions))
	copy(out, t.completions)
	return out
}

// RecordCompletion appends c and persists the log.
func (t *Tracker) RecordCompletion(c Completion) error {
	t.completions = append(t.completions, c)
	return t.Save()
}

func (t *Tracker) successful() []Completion {
	var out []Completion
	for _, c := range t.completions {
		if c.Status == StatusDone {
			out = append(out, c)
		}
	}
	return out
}

func meanMinutes(cs []Completion) float64 {
	if len(cs) == 0 {
		return 0
	}
	var total float64
	for _, c := range cs {
		total += c.DurationSeconds
	}
	return total / float64(len(cs)) / 60
}

// AverageDuration returns the mean duration in minutes over done completions,
// or 0 when there are none.
func (t *Tracker) AverageDuration() float64 {
	return meanMinutes(t.successful())
}

// RecentVelocity returns the mean duration in minutes over the last n done
// completions, or 0 when there are none.
func (t *Tracker) RecentVelocity(n int) float64 {
	done := t.successful()
	if n > 0 && len(done) > n {
		done = done[len(done)-n:]
	}
	return meanMinutes(done)
}

// PredictETA estimates when remaining tasks will be finished. It returns now
// for zero remaining and false when there is no average to extrapolate from.
func (t *Tracker) PredictETA(remaining int) (time.Time, bool) {
	now := t.now()
	if remaining == 0 {
		return now, true
	}
	avg := t.AverageDuration()
	if avg == 0 {
		return time.Time{}, false
	}
	minutes := avg * float64(remaining)
	return now.Add(time.Duration(minutes * float64(time.Minute))), true
}

// SetBaseline stores the current prediction as the baseline. Without a
// prediction it does nothing.
func (t *Tracker) SetBaseline(remaining int) error {
	eta, ok := t.PredictETA(remaining)
	if !ok {
		return nil
	}
	t.baseline = &Baseline{ETA: eta, Remaining: remaining}
	return t.Save()
}

// HasBaseline reports whether a baseline has been captured.
func (t *Tracker) HasBaseline() bool {
	return t.baseline != nil
}

// Baseline returns the captured baseline, or nil.
func (t *Tracker) Baseline() *Baseline {
	return t.baseline
}

// Drift returns how far the current prediction has moved from the baseline.
// Positive means behind schedule.
func (t *Tracker) Drift(remaining int) (time.Duration, bool) {
	if t.baseline == nil {
		return 0, false
	}
	eta, ok := t.PredictETA(remaining)
	if !ok {
		return 0, false
	}
	return eta.Sub(t.baseline.ETA), true
}

// DetectStall returns the current task duration as a multiple of the average,
// or 0 with no history.
func (t *Tracker) DetectStall(current time.Duration) float64 {
	avgSeconds := t.AverageDuration() * 60
	if avgSeconds == 0 {
		return 0
	}
	return current.Seconds() / avgSeconds
}

// IterationsUsed sums the iterations recorded across all completions.
func (t *Tracker) IterationsUsed() int {
	total := 0
	for _, c := range t.completions {
		total += c.Iterations
	}
	return total
}

// Stats summarises the log.
func (t *Tracker) Stats() Stats {
	s := Stats{
		TotalCompletions:      len(t.completions),
		AvgDurationMinutes:    t.AverageDuration(),
		RecentVelocityMinutes: t.RecentVelocity(DefaultRecentWindow),
	}
	for _, c := range t.completions {
		switch c.Status {
		case StatusDone:
			s.Successful++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
