// Package status assembles a point-in-time view of a project for the CLI,
// the dashboard API and the watch view.
package status

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/config"
	"github.com/pablasso/wiggum/internal/control"
	"github.com/pablasso/wiggum/internal/git"
	"github.com/pablasso/wiggum/internal/history"
)

// Sizes of the log excerpts.
const (
	GitLogLines    = 12
	RunnerLogLines = 5
	CrashLogLines  = 10
)

// Runner labels.
const (
	LabelPaused  = "Paused"
	LabelRunning = "Running"
	LabelCrashed = "Crashed"
	LabelStopped = "Stopped"
)

// KanbanStats are board-wide counts.
type KanbanStats struct {
	Total           int     `json:"total"`
	Todo            int     `json:"todo"`
	Done            int     `json:"done"`
	Failed          int     `json:"failed"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Velocity is minutes per done task.
type Velocity struct {
	AvgMinutes    float64 `json:"avg_minutes"`
	RecentMinutes float64 `json:"recent_minutes"`
}

// TaskSummary is a task as shown in a milestone listing.
type TaskSummary struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Status board.Status `json:"status"`
	Note   string       `json:"note,omitempty"`
}

// MilestoneSummary carries per-milestone counts and tasks.
type MilestoneSummary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	BlockedBy []string      `json:"blocked_by"`
	Blocked   bool          `json:"blocked"`
	Total     int           `json:"total"`
	Done      int           `json:"done"`
	Todo      int           `json:"todo"`
	Failed    int           `json:"failed"`
	Tasks     []TaskSummary `json:"tasks"`
}

// CurrentTask is the task the runner's heartbeat reports.
type CurrentTask struct {
	ID              string  `json:"id"`
	Attempt         int     `json:"attempt,omitempty"`
	Level           string  `json:"level,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	StallMultiplier float64 `json:"stall_multiplier,omitempty"`
}

// Snapshot is the full status document.
type Snapshot struct {
	ProjectName    string             `json:"project_name"`
	Timestamp      time.Time          `json:"timestamp"`
	Paused         bool               `json:"paused"`
	MaxIterations  *int               `json:"max_iterations"`
	Kanban         KanbanStats        `json:"kanban"`
	Velocity       Velocity           `json:"velocity"`
	Milestones     []MilestoneSummary `json:"milestones"`
	PredictedETA   *time.Time         `json:"predicted_eta,omitempty"`
	DriftMinutes   *float64           `json:"drift_minutes,omitempty"`
	BaselineETA    *time.Time         `json:"baseline_eta,omitempty"`
	RunnerAlive    bool               `json:"runner_alive"`
	RunnerCrashed  bool               `json:"runner_crashed"`
	RunID          string             `json:"run_id,omitempty"`
	Iteration      int                `json:"iteration,omitempty"`
	IterationsUsed int                `json:"iterations_used"`
	CurrentTask    *CurrentTask       `json:"current_task,omitempty"`
	GitLog         []string           `json:"git_log"`
	GitDirty       []string           `json:"git_dirty,omitempty"`
	RunnerLog      []string           `json:"runner_log"`
}

// Label summarises the runner state in one word.
func (s *Snapshot) Label() string {
	switch {
	case s.Paused:
		return LabelPaused
	case s.RunnerAlive:
		return LabelRunning
	case s.RunnerCrashed:
		return LabelCrashed
	default:
		return LabelStopped
	}
}

// Collector builds snapshots for one project.
type Collector struct {
	cfg      *config.Config
	controls *control.Controls
	now      func() time.Time
	withGit  bool
}

// NewCollector creates a collector reading cfg's files and controls.
func NewCollector(cfg *config.Config, controls *control.Controls) *Collector {
	return &Collector{
		cfg:      cfg,
		controls: controls,
		now:      time.Now,
		withGit:  true,
	}
}

// WithClock sets the clock (useful for testing).
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// WithoutGit skips the git excerpts.
func (c *Collector) WithoutGit() *Collector {
	c.withGit = false
	return c
}

// Controls returns the controls the collector reads.
func (c *Collector) Controls() *control.Controls {
	return c.controls
}

// Collect reads the board, history and controls. A missing or invalid
// board is returned as an error; everything else degrades to empty values.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	b, err := board.NewManager(c.cfg.KanbanPath()).Load()
	if err != nil {
		return nil, err
	}
	tracker := history.NewTracker(c.cfg.WorkDir(), history.WithClock(c.now))
	tracker.Load()

	now := c.now()
	stats := b.Stats()
	hstats := tracker.Stats()

	s := &Snapshot{
		ProjectName: c.cfg.Project.Name,
		Timestamp:   now,
		Paused:      c.controls.IsPaused(ctx),
		Kanban: KanbanStats{
			Total:           stats.Total,
			Todo:            stats.Todo,
			Done:            stats.Done,
			Failed:          stats.Failed,
			ProgressPercent: stats.ProgressPercent(),
		},
		Velocity: Velocity{
			AvgMinutes:    hstats.AvgDurationMinutes,
			RecentMinutes: hstats.RecentVelocityMinutes,
		},
		Milestones: milestones(b),
		GitLog:     []string{},
		RunnerLog:  []string{},
	}
	if n, ok := c.controls.GetMaxIterations(ctx); ok {
		s.MaxIterations = &n
	}
	if eta, ok := tracker.PredictETA(stats.Todo); ok {
		s.PredictedETA = &eta
	}
	if drift, ok := tracker.Drift(stats.Todo); ok {
		minutes := drift.Minutes()
		s.DriftMinutes = &minutes
	}
	if bl := tracker.Baseline(); bl != nil {
		eta := bl.ETA
		s.BaselineETA = &eta
	}

	hb := c.controls.ReadState(ctx)
	s.RunnerAlive = c.controls.IsRunnerAlive(ctx)
	s.RunnerCrashed = !s.RunnerAlive && hb != nil
	if hb != nil {
		s.RunID = hb.RunID
		s.Iteration = hb.Iteration
		s.IterationsUsed = hb.Iteration
		if hb.TaskID != "" {
			s.CurrentTask = currentTask(hb, tracker, now)
		}
	} else {
		s.IterationsUsed = tracker.IterationsUsed()
	}

	if c.withGit {
		dir := c.cfg.WorkDir()
		if lines, err := git.RecentLog(ctx, dir, GitLogLines); err == nil {
			s.GitLog = lines
		}
		if gs, err := git.GetStatus(ctx, dir); err == nil {
			s.GitDirty = gs.Files
		}
	}
	if lines, err := tail(c.cfg.LogPath(), RunnerLogLines); err == nil {
		s.RunnerLog = lines
	}
	return s, nil
}

func milestones(b *board.Board) []MilestoneSummary {
	out := make([]MilestoneSummary, 0, len(b.Milestones))
	for i := range b.Milestones {
		m := &b.Milestones[i]
		ms := b.MilestoneStats(m.ID)
		summary := MilestoneSummary{
			ID:        m.ID,
			Name:      m.Name,
			BlockedBy: m.BlockedBy,
			Blocked:   b.IsBlocked(m),
			Total:     ms.Total,
			Done:      ms.Done,
			Todo:      ms.Todo,
			Failed:    ms.Failed,
			Tasks:     make([]TaskSummary, 0, len(m.Tasks)),
		}
		for _, t := range m.Tasks {
			summary.Tasks = append(summary.Tasks, TaskSummary{
				ID:     t.ID,
				Title:  t.Title,
				Status: t.Status,
				Note:   t.Note,
			})
		}
		out = append(out, summary)
	}
	return out
}

func currentTask(hb *control.Heartbeat, tracker *history.Tracker, now time.Time) *CurrentTask {
	ct := &CurrentTask{
		ID:      hb.TaskID,
		Attempt: hb.Attempt,
		Level:   hb.Level,
	}
	if hb.TaskStartedAt != nil {
		elapsed := now.Sub(*hb.TaskStartedAt)
		ct.DurationSeconds = elapsed.Seconds()
		ct.StallMultiplier = tracker.DetectStall(elapsed)
	}
	return ct
}

// Blob renders a compact plain-text status meant to be pasted into a chat.
// A crashed runner adds the tail of the runner log.
func (c *Collector) Blob(ctx context.Context) (string, error) {
	noGit := *c
	noGit.withGit = false
	s, err := noGit.Collect(ctx)
	if err != nil {
		return "", err
	}

	budget := "?"
	if s.MaxIterations != nil {
		budget = fmt.Sprintf("%d", *s.MaxIterations)
	}

	parts := []string{
		fmt.Sprintf("# %s - Wiggum Status", s.ProjectName),
		fmt.Sprintf("Status: %s", s.Label()),
		fmt.Sprintf("Iterations: %d/%s", s.IterationsUsed, budget),
		fmt.Sprintf("Progress: %d/%d tasks (%.1f%%)", s.Kanban.Done, s.Kanban.Total, s.Kanban.ProgressPercent),
		fmt.Sprintf("Avg velocity: %.1f min/task", s.Velocity.AvgMinutes),
	}
	if s.PredictedETA != nil {
		parts = append(parts, fmt.Sprintf("ETA: %s (%s)",
			s.PredictedETA.Format("2006-01-02 15:04"),
			humanize.RelTime(*s.PredictedETA, s.Timestamp, "ago", "from now")))
	}
	if s.CurrentTask != nil {
		parts = append(parts, fmt.Sprintf("Current task: %s (attempt %d)", s.CurrentTask.ID, s.CurrentTask.Attempt))
	}

	if s.RunnerCrashed {
		if lines, err := tail(c.cfg.LogPath(), CrashLogLines); err == nil && len(lines) > 0 {
			parts = append(parts, "", fmt.Sprintf("## Crash Log (last %d lines)", CrashLogLines))
			parts = append(parts, lines...)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// tail returns the last n lines of the file at path.
func tail(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return []string{}, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
