package status

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/config"
	"github.com/pablasso/wiggum/internal/control"
	"github.com/pablasso/wiggum/internal/history"
	"github.com/pablasso/wiggum/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupProject(t *testing.T) (*config.Config, *control.Controls) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Project.Name = "Springfield"
	cfg.Project.WorkDir = dir

	testutil.WriteBoard(t, cfg.KanbanPath(), testutil.SampleBoard())

	controls := control.New(control.NewFileStore(dir), control.WithClock(func() time.Time { return testNow }))
	return cfg, controls
}

func recordDone(t *testing.T, cfg *config.Config, n int, each time.Duration) {
	t.Helper()
	tracker := history.NewTracker(cfg.WorkDir())
	tracker.Load()
	for i := 0; i < n; i++ {
		start := testNow.Add(-time.Duration(n-i) * time.Hour)
		err := tracker.RecordCompletion(history.Completion{
			TaskID:          fmt.Sprintf("M0.%d", i+1),
			StartedAt:       start,
			CompletedAt:     start.Add(each),
			DurationSeconds: each.Seconds(),
			Iterations:      2,
			Status:          history.StatusDone,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func writeLog(t *testing.T, cfg *config.Config, lines int) {
	t.Helper()
	var sb strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	if err := os.WriteFile(cfg.LogPath(), []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

func newCollector(cfg *config.Config, controls *control.Controls) *Collector {
	return NewCollector(cfg, controls).WithClock(func() time.Time { return testNow }).WithoutGit()
}

func TestCollect_Board(t *testing.T) {
	cfg, controls := setupProject(t)

	s, err := newCollector(cfg, controls).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if s.ProjectName != "Springfield" || !s.Timestamp.Equal(testNow) {
		t.Errorf("unexpected header: %s %v", s.ProjectName, s.Timestamp)
	}
	want := KanbanStats{Total: 3, Todo: 1, Done: 1, Failed: 1}
	want.ProgressPercent = board.Stats{Total: 3, Todo: 1, Done: 1, Failed: 1}.ProgressPercent()
	if s.Kanban != want {
		t.Errorf("Kanban = %+v, want %+v", s.Kanban, want)
	}
	if len(s.Milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(s.Milestones))
	}
	m2 := s.Milestones[1]
	if !m2.Blocked || m2.Todo != 1 || len(m2.BlockedBy) != 1 {
		t.Errorf("unexpected M2 summary: %+v", m2)
	}
	if s.Milestones[0].Tasks[1].Note != "missing toolchain" {
		t.Errorf("expected task note, got %+v", s.Milestones[0].Tasks[1])
	}

	if s.MaxIterations != nil || s.PredictedETA != nil || s.DriftMinutes != nil {
		t.Error("expected no budget or predictions on a fresh project")
	}
	if s.Label() != LabelStopped || s.RunnerAlive || s.RunnerCrashed {
		t.Errorf("label = %s", s.Label())
	}
	if s.GitLog == nil || s.RunnerLog == nil {
		t.Error("log excerpts should be empty slices, not nil")
	}
}

func TestCollect_MissingBoard(t *testing.T) {
	cfg := config.Default()
	cfg.Project.WorkDir = t.TempDir()
	controls := control.New(control.NewFileStore(cfg.WorkDir()))

	_, err := newCollector(cfg, controls).Collect(context.Background())
	if !errors.Is(err, board.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCollect_Predictions(t *testing.T) {
	ctx := context.Background()
	cfg, controls := setupProject(t)
	recordDone(t, cfg, 2, 5*time.Minute)

	tracker := history.NewTracker(cfg.WorkDir(), history.WithClock(func() time.Time { return testNow.Add(-time.Hour) }))
	tracker.Load()
	if err := tracker.SetBaseline(1); err != nil {
		t.Fatal(err)
	}
	controls.SetMaxIterations(ctx, 40)

	s, err := newCollector(cfg, controls).Collect(ctx)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if s.MaxIterations == nil || *s.MaxIterations != 40 {
		t.Errorf("MaxIterations = %v", s.MaxIterations)
	}
	if s.Velocity.AvgMinutes != 5 || s.Velocity.RecentMinutes != 5 {
		t.Errorf("Velocity = %+v", s.Velocity)
	}
	if s.PredictedETA == nil || !s.PredictedETA.Equal(testNow.Add(5*time.Minute)) {
		t.Errorf("PredictedETA = %v", s.PredictedETA)
	}
	if s.DriftMinutes == nil || *s.DriftMinutes != 60 {
		t.Errorf("DriftMinutes = %v, want 60", s.DriftMinutes)
	}
	if s.BaselineETA == nil {
		t.Error("expected baseline ETA")
	}
	// no heartbeat: iterations come from history
	if s.IterationsUsed != 4 {
		t.Errorf("IterationsUsed = %d, want 4", s.IterationsUsed)
	}
}

func TestCollect_LiveRunner(t *testing.T) {
	ctx := context.Background()
	cfg, controls := setupProject(t)
	recordDone(t, cfg, 1, 5*time.Minute)

	started := testNow.Add(-10 * time.Minute)
	err := controls.WriteState(ctx, control.Heartbeat{
		Iteration:     7,
		TaskID:        "M1.3",
		RunID:         "run-1",
		Attempt:       3,
		Level:         "eddie",
		TaskStartedAt: &started,
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := newCollector(cfg, controls).Collect(ctx)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if !s.RunnerAlive || s.RunnerCrashed || s.Label() != LabelRunning {
		t.Errorf("expected running, got alive=%v crashed=%v", s.RunnerAlive, s.RunnerCrashed)
	}
	if s.IterationsUsed != 7 || s.RunID != "run-1" {
		t.Errorf("IterationsUsed = %d, RunID = %s", s.IterationsUsed, s.RunID)
	}
	ct := s.CurrentTask
	if ct == nil {
		t.Fatal("expected current task")
	}
	if ct.ID != "M1.3" || ct.Attempt != 3 || ct.Level != "eddie" {
		t.Errorf("unexpected current task: %+v", ct)
	}
	if ct.DurationSeconds != 600 || ct.StallMultiplier != 2.0 {
		t.Errorf("duration = %v, stall = %v", ct.DurationSeconds, ct.StallMultiplier)
	}

	controls.Pause(ctx)
	s, _ = newCollector(cfg, controls).Collect(ctx)
	if s.Label() != LabelPaused {
		t.Errorf("label = %s, want %s", s.Label(), LabelPaused)
	}
}

func TestCollect_RunnerLogTail(t *testing.T) {
	cfg, controls := setupProject(t)
	writeLog(t, cfg, 8)

	s, err := newCollector(cfg, controls).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(s.RunnerLog) != RunnerLogLines || s.RunnerLog[0] != "line 4" || s.RunnerLog[4] != "line 8" {
		t.Errorf("RunnerLog = %v", s.RunnerLog)
	}
}

func TestBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("stopped", func(t *testing.T) {
		cfg, controls := setupProject(t)
		recordDone(t, cfg, 2, 3*time.Minute)

		blob, err := newCollector(cfg, controls).Blob(ctx)
		if err != nil {
			t.Fatalf("Blob returned error: %v", err)
		}
		want := []string{
			"# Springfield - Wiggum Status",
			"Status: Stopped",
			"Iterations: 4/?",
			"Progress: 1/3 tasks (33.3%)",
			"Avg velocity: 3.0 min/task",
			"ETA: 2026-03-01 12:03 (3 minutes from now)",
		}
		if got := strings.Split(blob, "\n"); strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("blob =\n%s\nwant\n%s", blob, strings.Join(want, "\n"))
		}
	})

	t.Run("crashed includes log tail", func(t *testing.T) {
		cfg, controls := setupProject(t)
		writeLog(t, cfg, 15)
		controls.SetMaxIterations(ctx, 50)
		state := `{"pid": 999999999, "iteration": 12, "task_id": "M1.3"}`
		if err := os.WriteFile(filepath.Join(cfg.WorkDir(), control.StateFileName), []byte(state), 0644); err != nil {
			t.Fatal(err)
		}

		blob, err := newCollector(cfg, controls).Blob(ctx)
		if err != nil {
			t.Fatalf("Blob returned error: %v", err)
		}
		for _, part := range []string{"Status: Crashed", "Iterations: 12/50", "## Crash Log (last 10 lines)", "line 6\n", "line 15"} {
			if !strings.Contains(blob, part) {
				t.Errorf("blob missing %q:\n%s", part, blob)
			}
		}
		if strings.Contains(blob, "line 5\n") {
			t.Error("blob should only include the last 10 lines")
		}
	})
}
