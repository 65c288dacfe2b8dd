package history

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(t.TempDir(), WithClock(func() time.Time { return fixedNow }))
}

func completion(id string, seconds float64, status string) Completion {
	start := fixedNow.Add(-time.Duration(seconds * float64(time.Second)))
	return Completion{
		TaskID:          id,
		TaskTitle:       "task " + id,
		StartedAt:       start,
		CompletedAt:     fixedNow,
		DurationSeconds: seconds,
		Iterations:      1,
		Status:          status,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTracker_Empty(t *testing.T) {
	tr := newTracker(t)

	if got := tr.AverageDuration(); got != 0 {
		t.Errorf("AverageDuration() = %v, want 0", got)
	}
	if got := tr.RecentVelocity(3); got != 0 {
		t.Errorf("RecentVelocity() = %v, want 0", got)
	}
	if got := tr.DetectStall(10 * time.Minute); got != 0 {
		t.Errorf("DetectStall() = %v, want 0", got)
	}
	if _, ok := tr.PredictETA(4); ok {
		t.Error("expected no ETA without history")
	}
	eta, ok := tr.PredictETA(0)
	if !ok || !eta.Equal(fixedNow) {
		t.Errorf("PredictETA(0) = %v, %v; want now", eta, ok)
	}
	if _, ok := tr.Drift(3); ok {
		t.Error("expected no drift without baseline")
	}
}

func TestTracker_AverageAndETA(t *testing.T) {
	tr := newTracker(t)
	for i := 0; i < 5; i++ {
		if err := tr.RecordCompletion(completion("T", 180, StatusDone)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := tr.AverageDuration(); !approxEqual(got, 3.0) {
		t.Errorf("AverageDuration() = %v, want 3.0", got)
	}

	eta, ok := tr.PredictETA(5)
	if !ok {
		t.Fatal("expected ETA")
	}
	want := fixedNow.Add(15 * time.Minute)
	if diff := eta.Sub(want); diff < -time.Second || diff > time.Second {
		t.Errorf("PredictETA(5) = %v, want about %v", eta, want)
	}
}

func TestTracker_FailedIgnoredInAverages(t *testing.T) {
	tr := newTracker(t)
	tr.RecordCompletion(completion("A", 120, StatusDone))
	tr.RecordCompletion(completion("B", 6000, StatusFailed))
	tr.RecordCompletion(completion("C", 240, StatusDone))

	if got := tr.AverageDuration(); !approxEqual(got, 3.0) {
		t.Errorf("AverageDuration() = %v, want 3.0", got)
	}

	stats := tr.Stats()
	if stats.TotalCompletions != 3 || stats.Successful != 2 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTracker_RecentVelocity(t *testing.T) {
	tr := newTracker(t)
	for _, s := range []float64{600, 60, 120, 180} {
		tr.RecordCompletion(completion("T", s, StatusDone))
	}

	tests := []struct {
		n    int
		want float64
	}{
		{n: 3, want: 2.0},
		{n: 1, want: 3.0},
		{n: 10, want: 4.0},
	}
	for _, tt := range tests {
		if got := tr.RecentVelocity(tt.n); !approxEqual(got, tt.want) {
			t.Errorf("RecentVelocity(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestTracker_DetectStall(t *testing.T) {
	tr := newTracker(t)
	tr.RecordCompletion(completion("T", 300, StatusDone))

	if got := tr.DetectStall(600 * time.Second); !approxEqual(got, 2.0) {
		t.Errorf("DetectStall(600s) = %v, want 2.0", got)
	}
}

func TestTracker_BaselineAndDrift(t *testing.T) {
	dir := t.TempDir()
	now := fixedNow
	tr := NewTracker(dir, WithClock(func() time.Time { return now }))

	// No average yet: baseline is a no-op
	if err := tr.SetBaseline(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.HasBaseline() {
		t.Fatal("expected no baseline without an average")
	}

	tr.RecordCompletion(completion("T", 60, StatusDone))
	if err := tr.SetBaseline(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.HasBaseline() || tr.Baseline().Remaining != 4 {
		t.Fatalf("unexpected baseline: %+v", tr.Baseline())
	}

	now = now.Add(10 * time.Minute)
	drift, ok := tr.Drift(4)
	if !ok {
		t.Fatal("expected drift")
	}
	if drift != 10*time.Minute {
		t.Errorf("Drift = %v, want 10m", drift)
	}

	reloaded := NewTracker(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reloaded.HasBaseline() || len(reloaded.Completions()) != 1 {
		t.Error("expected baseline and completion to survive reload")
	}
}

func TestTracker_Load(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		tr := newTracker(t)
		if err := tr.Load(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tr.Completions()) != 0 {
			t.Error("expected empty log")
		}
	})

	t.Run("malformed file resets to empty", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644)
		tr := NewTracker(dir)
		tr.completions = []Completion{completion("stale", 1, StatusDone)}
		if err := tr.Load(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tr.Completions()) != 0 || tr.HasBaseline() {
			t.Error("expected empty log after malformed load")
		}
	})

	t.Run("null baseline", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, FileName), []byte(`{"completions": [], "baseline": null}`), 0644)
		tr := NewTracker(dir)
		if err := tr.Load(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.HasBaseline() {
			t.Error("expected no baseline")
		}
	})
}

func TestTracker_IterationsUsed(t *testing.T) {
	tr := newTracker(t)
	c := completion("A", 60, StatusDone)
	c.Iterations = 3
	tr.RecordCompletion(c)
	c.Iterations = 2
	c.Status = StatusFailed
	tr.RecordCompletion(c)

	if got := tr.IterationsUsed(); got != 5 {
		t.Errorf("IterationsUsed() = %d, want 5", got)
	}
}
