// Package runner drives the unattended loop: pick the next task, hand it to
// an agent backend, reconcile the board and record history.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pablasso/wiggum/internal/agent"
	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/config"
	"github.com/pablasso/wiggum/internal/control"
	"github.com/pablasso/wiggum/internal/history"
	"github.com/pablasso/wiggum/internal/prompt"
	"github.com/pablasso/wiggum/internal/routing"
)

// Reasons recorded when the loop stops.
const (
	StopBudget    = "budget_exhausted"
	StopBoardDone = "board_exhausted"
	StopCancelled = "cancelled"
	StopFailed    = "failed"
)

// ErrBackendUnavailable is returned when the startup backend check fails.
var ErrBackendUnavailable = errors.New("agent backend is not available")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Iterations int
	Resolved   int
	Reason     string
	Duration   time.Duration
}

// Runner orchestrates agent iterations over a task board.
type Runner struct {
	cfg      *config.Config
	board    *board.Manager
	controls *control.Controls
	history  *history.Tracker
	progress *history.ProgressLogger
	prompts  *prompt.Builder
	router   *routing.Router
	factory  agent.Factory
	log      *log.Logger
	now      func() time.Time
	sleep    SleepFunc
	runID    string

	backend      agent.Backend
	backendLevel routing.Level

	iteration int
	budget    int
	resolved  int

	taskID    string
	taskStart time.Time
	attempts  int
	level     routing.Level
}

// New creates a Runner for cfg using controls for the control channel.
func New(cfg *config.Config, controls *control.Controls) *Runner {
	workDir := cfg.WorkDir()
	return &Runner{
		cfg:      cfg,
		board:    board.NewManager(cfg.KanbanPath()),
		controls: controls,
		history:  history.NewTracker(workDir),
		progress: history.NewProgressLogger(workDir),
		prompts: prompt.NewBuilder(prompt.Options{
			ProjectName:     cfg.Project.Name,
			KanbanPath:      cfg.KanbanPath(),
			CommitAfterTask: cfg.Runner.CommitAfterTask,
			CommitFormat:    cfg.Runner.CommitFormat,
			TechStack:       cfg.Prompt.TechStack,
			Conventions:     cfg.Prompt.Conventions,
			ExtraContext:    cfg.Prompt.ExtraContext,
		}),
		factory: agent.DefaultFactory,
		log:     log.StandardLogger(),
		now:     time.Now,
		sleep:   sleepContext,
		runID:   uuid.NewString(),
	}
}

// WithFactory sets the backend factory (useful for testing).
func (r *Runner) WithFactory(f agent.Factory) *Runner {
	r.factory = f
	return r
}

// WithLogger sets the logger.
func (r *Runner) WithLogger(l *log.Logger) *Runner {
	r.log = l
	return r
}

// WithClock sets the clock used for task timing and history.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	r.history = history.NewTracker(r.cfg.WorkDir(), history.WithClock(now))
	return r
}

// WithSleep sets the function used between iterations.
func (r *Runner) WithSleep(s SleepFunc) *Runner {
	r.sleep = s
	return r
}

// RunID returns the identifier stamped on the heartbeat and progress log.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes iterations until the budget is used, the board has no
// eligible task, or ctx is cancelled. Only startup faults are returned.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := r.start(ctx); err != nil {
		return nil, err
	}

	started := r.now()
	reason := StopFailed
	defer func() {
		// ctx may already be cancelled; cleanup still has to reach the store.
		cleanupCtx := context.WithoutCancel(ctx)
		if err := r.controls.ClearState(cleanupCtx); err != nil {
			r.log.WithError(err).Warn("failed to clear heartbeat")
		}
		if err := r.progress.RunFinished(r.iteration, reason, r.now().Sub(started)); err != nil {
			r.log.WithError(err).Warn("failed to log run finished")
		}
	}()

	reason = r.loop(ctx)

	r.log.WithFields(log.Fields{
		"iterations": r.iteration,
		"resolved":   r.resolved,
		"reason":     reason,
	}).Infof("Runner completed after %d iterations", r.iteration)

	return &Summary{
		RunID:      r.runID,
		Iterations: r.iteration,
		Resolved:   r.resolved,
		Reason:     reason,
		Duration:   r.now().Sub(started),
	}, nil
}

// start loads state and checks the backend. Any error here is fatal.
func (r *Runner) start(ctx context.Context) error {
	b, err := r.board.Load()
	if err != nil {
		return fmt.Errorf("failed to load board: %w", err)
	}
	if err := r.history.Load(); err != nil {
		r.log.WithError(err).Warn("failed to load history, starting empty")
	}

	if r.cfg.Routing != nil {
		router, err := routing.NewRouter(*r.cfg.Routing)
		if err != nil {
			return fmt.Errorf("failed to configure routing: %w", err)
		}
		r.router = router
	}

	backendCfg := r.cfg.Agent.BackendConfig()
	if r.router != nil {
		r.backendLevel = r.router.ChainStart()
		backendCfg = r.router.AgentConfig(r.backendLevel)
	}
	backend, err := r.factory.New(backendCfg)
	if err != nil {
		return fmt.Errorf("failed to create agent backend: %w", err)
	}
	if !backend.CheckAvailable(ctx) {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, backend.Name())
	}
	r.backend = backend

	r.log.Infof("Starting wiggum runner for %s", r.cfg.Project.Name)
	r.log.WithFields(log.Fields{
		"backend": backend.Name(),
		"model":   backendCfg.Model,
		"run_id":  r.runID,
	}).Info("Agent ready")

	budget, ok := r.controls.GetMaxIterations(ctx)
	if !ok {
		budget = r.cfg.Runner.MaxIterations
		if err := r.controls.SetMaxIterations(ctx, budget); err != nil {
			r.log.WithError(err).Warn("failed to store iteration budget")
		}
	}
	r.budget = budget

	stats := b.Stats()
	if !r.history.HasBaseline() && stats.Todo > 0 {
		if err := r.history.SetBaseline(stats.Todo); err != nil {
			r.log.WithError(err).Warn("failed to save baseline")
		} else if r.history.HasBaseline() {
			r.log.Infof("Set baseline ETA for %d remaining tasks", stats.Todo)
		}
	}

	if err := r.progress.RunStarted(r.runID, r.budget, stats.Todo); err != nil {
		r.log.WithError(err).Warn("failed to log run started")
	}
	return nil
}

func (r *Runner) loop(ctx context.Context) string {
	for r.iteration < r.budget {
		if ctx.Err() != nil {
			return StopCancelled
		}

		r.iteration++
		r.writeHeartbeat(ctx)

		if n, ok := r.controls.GetMaxIterations(ctx); ok && n != r.budget {
			r.budget = n
			r.log.Infof("Max iterations updated to %d", n)
		}

		if r.controls.IsPaused(ctx) {
			r.log.Info("Runner paused, waiting for resume...")
			if err := r.controls.WaitWhilePaused(ctx, r.cfg.PausePollInterval()); err != nil {
				return StopCancelled
			}
			r.log.Info("Runner resumed")
		}

		milestone, task, err := r.board.FindNextTask()
		if err != nil {
			r.log.WithError(err).Error("failed to read board")
			return StopFailed
		}
		if task == nil {
			r.log.Info("No more tasks available, exiting")
			return StopBoardDone
		}

		r.tick(ctx, milestone, task)

		if err := r.sleep(ctx, r.cfg.SleepBetween()); err != nil && ctx.Err() != nil {
			return StopCancelled
		}
	}
	return StopBudget
}

// tick runs one attempt of task and reconciles the board afterwards.
func (r *Runner) tick(ctx context.Context, milestone *board.Milestone, task *board.Task) {
	taskChanged := task.ID != r.taskID
	if taskChanged {
		r.taskID = task.ID
		r.taskStart = r.now()
		r.attempts = 0
		r.level = 0
		if r.router != nil {
			r.level = r.router.ChainStart()
		}
	}
	r.attempts++

	if r.router != nil {
		r.route(task, milestone, taskChanged)
	}
	r.writeHeartbeat(ctx)

	entry := r.log.WithFields(log.Fields{
		"iteration": r.iteration,
		"task_id":   task.ID,
		"attempt":   r.attempts,
	})
	if r.level != 0 {
		entry = entry.WithField("agent_level", r.level.String())
	}
	entry.Infof("Iteration %d/%d: Starting task %s - %s", r.iteration, r.budget, task.ID, task.Title)
	if taskChanged {
		if err := r.progress.TaskStarted(task.ID, levelName(r.level)); err != nil {
			r.log.WithError(err).Warn("failed to log task started")
		}
	}

	hint, ok, err := r.controls.ConsumeHint(ctx)
	if err != nil {
		r.log.WithError(err).Warn("failed to consume hint")
	}
	if ok {
		r.log.Infof("Received hint: %s", truncate(hint, 100))
	}

	// A stop signal only prevents the next tick; the agent is bounded by its timeout.
	result := r.backend.Run(context.WithoutCancel(ctx), r.prompts.Build(task, hint), r.cfg.WorkDir(), r.cfg.Agent.TimeoutDuration())
	resultEntry := entry.WithFields(log.Fields{
		"backend":   r.backend.Name(),
		"exit_code": result.ExitCode,
	})
	if result.Success {
		resultEntry.Infof("Agent completed (exit code %d)", result.ExitCode)
	} else {
		resultEntry.Warnf("Agent failed (exit code %d)", result.ExitCode)
		if result.Stderr != "" {
			resultEntry.Warnf("Error: %s", truncate(result.Stderr, 200))
		}
	}

	r.reconcile(task, entry)
}

// route applies escalation and rules, switching backend when the resolved
// level changes or a new task starts.
func (r *Runner) route(task *board.Task, milestone *board.Milestone, taskChanged bool) {
	elapsed := r.now().Sub(r.taskStart)
	if r.router.ShouldEscalate(r.attempts, elapsed) {
		if next, ok := r.router.Escalate(r.level); ok {
			r.log.WithFields(log.Fields{
				"task_id": task.ID,
				"from":    r.level.String(),
				"to":      next.String(),
			}).Warnf("Escalating task %s to %s after %d attempts", task.ID, next, r.attempts)
			if err := r.progress.Escalated(task.ID, r.level.String(), next.String()); err != nil {
				r.log.WithError(err).Warn("failed to log escalation")
			}
			r.level = next
		}
	}

	level, cfg := r.router.RouteTask(task.ID, task.Type, milestone.ID, r.level)
	if level == r.backendLevel && !taskChanged {
		return
	}
	backend, err := r.factory.New(cfg)
	if err != nil {
		r.log.WithError(err).WithField("agent_level", level.String()).Error("failed to create agent backend, keeping current one")
		return
	}
	r.backend = backend
	r.backendLevel = level
	r.log.WithFields(log.Fields{
		"agent_level": level.String(),
		"backend":     backend.Name(),
		"model":       cfg.Model,
	}).Info("Using agent")
}

// reconcile reloads the board and records a completion when the task has
// left todo.
func (r *Runner) reconcile(task *board.Task, entry *log.Entry) {
	if _, err := r.board.Load(); err != nil {
		entry.WithError(err).Warn("failed to reload board")
		return
	}
	updated, err := r.board.GetTask(task.ID)
	if err != nil || updated == nil || updated.Status == board.StatusTodo {
		entry.Warnf("Task %s was not updated by agent", task.ID)
		if err := r.progress.TaskNotUpdated(task.ID, r.attempts); err != nil {
			r.log.WithError(err).Warn("failed to log task not updated")
		}
		return
	}

	end := r.now()
	completion := history.Completion{
		TaskID:          task.ID,
		TaskTitle:       task.Title,
		StartedAt:       r.taskStart,
		CompletedAt:     end,
		DurationSeconds: end.Sub(r.taskStart).Seconds(),
		Iterations:      r.attempts,
		Status:          string(updated.Status),
	}
	if err := r.history.RecordCompletion(completion); err != nil {
		entry.WithError(err).Warn("failed to record completion")
	}
	if err := r.progress.TaskResolved(completion); err != nil {
		r.log.WithError(err).Warn("failed to log task resolved")
	}
	entry.WithFields(log.Fields{
		"status":           updated.Status,
		"duration_minutes": completion.DurationSeconds / 60,
	}).Infof("Task %s completed with status '%s' in %.1f minutes", task.ID, updated.Status, completion.DurationSeconds/60)

	r.resolved++
	r.taskID = ""
	r.taskStart = time.Time{}
	r.attempts = 0
	r.level = 0
}

func (r *Runner) writeHeartbeat(ctx context.Context) {
	hb := control.Heartbeat{
		Iteration: r.iteration,
		TaskID:    r.taskID,
		RunID:     r.runID,
		Attempt:   r.attempts,
		Level:     levelName(r.level),
	}
	if r.taskID != "" {
		started := r.taskStart
		hb.TaskStartedAt = &started
	}
	if err := r.controls.WriteState(ctx, hb); err != nil {
		r.log.WithError(err).Warn("failed to write heartbeat")
	}
}

func levelName(l routing.Level) string {
	if l == 0 {
		return ""
	}
	return l.String()
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
