package control

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Heartbeat is the runner state overwritten every tick and removed on exit.
// Readers ignore fields they do not know.
type Heartbeat struct {
	PID           int        `json:"pid"`
	Iteration     int        `json:"iteration"`
	TaskID        string     `json:"task_id"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RunID         string     `json:"run_id,omitempty"`
	Attempt       int        `json:"attempt,omitempty"`
	Level         string     `json:"level,omitempty"`
	TaskStartedAt *time.Time `json:"task_started_at,omitempty"`
}

// Controls exposes typed operations over a Store. Read methods treat any
// store or parse failure as "absent"; write methods return errors.
type Controls struct {
	store Store
	now   func() time.Time
	pid   int
}

// Option configures Controls.
type Option func(*Controls)

// WithClock overrides the clock used for heartbeats and archive names.
func WithClock(now func() time.Time) Option {
	return func(c *Controls) { c.now = now }
}

// New creates Controls over store.
func New(store Store, opts ...Option) *Controls {
	c := &Controls{
		store: store,
		now:   time.Now,
		pid:   os.Getpid(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Controls) Store() Store {
	return c.store
}

// IsPaused reports whether the pause marker is present.
func (c *Controls) IsPaused(ctx context.Context) bool {
	_, err := c.store.Get(ctx, KeyPause)
	return err == nil
}

// Pause sets the pause marker. Pausing twice is harmless.
func (c *Controls) Pause(ctx context.Context) error {
	return c.store.Set(ctx, KeyPause, []byte{})
}

// Resume removes the pause marker if present.
func (c *Controls) Resume(ctx context.Context) error {
	return c.store.Delete(ctx, KeyPause)
}

// GetMaxIterations returns the stored iteration budget. ok is false when no
// budget is stored or the stored value is not an integer.
func (c *Controls) GetMaxIterations(ctx context.Context) (n int, ok bool) {
	data, err := c.store.Get(ctx, KeyMax)
	if err != nil {
		return 0, false
	}
	n, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetMaxIterations stores the iteration budget as decimal text.
func (c *Controls) SetMaxIterations(ctx context.Context, n int) error {
	return c.store.Set(ctx, KeyMax, []byte(strconv.Itoa(n)))
}

// AddIterations adds delta to the stored budget (absent counts as 0) and
// returns the new value.
func (c *Controls) AddIterations(ctx context.Context, delta int) (int, error) {
	current, _ := c.GetMaxIterations(ctx)
	next := current + delta
	if err := c.SetMaxIterations(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// GetHint returns the pending hint without consuming it. The text is trimmed.
func (c *Controls) GetHint(ctx context.Context) (string, bool) {
	data, err := c.store.Get(ctx, KeyHint)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// SetHint overwrites the pending hint.
func (c *Controls) SetHint(ctx context.Context, hint string) error {
	return c.store.Set(ctx, KeyHint, []byte(hint))
}

// ConsumeHint returns the pending hint, archives a timestamped copy and
// deletes it. A second call returns ok=false. If archiving fails the hint is
// left in place.
func (c *Controls) ConsumeHint(ctx context.Context) (string, bool, error) {
	hint, ok := c.GetHint(ctx)
	if !ok {
		return "", false, nil
	}

	name := c.now().Format("20060102-150405.000000000")
	if err := c.store.Archive(ctx, name, []byte(hint)); err != nil {
		return "", false, err
	}
	if err := c.store.Delete(ctx, KeyHint); err != nil {
		return hint, true, fmt.Errorf("failed to remove consumed hint: %w", err)
	}
	return hint, true, nil
}

// WriteState overwrites the heartbeat. PID and UpdatedAt are filled in from
// this process and the controls clock.
func (c *Controls) WriteState(ctx context.Context, hb Heartbeat) error {
	hb.PID = c.pid
	hb.UpdatedAt = c.now()
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}
	return c.store.Set(ctx, KeyState, data)
}

// ClearState removes the heartbeat.
func (c *Controls) ClearState(ctx context.Context) error {
	return c.store.Delete(ctx, KeyState)
}

// ReadState returns the heartbeat, or nil when absent or unreadable.
func (c *Controls) ReadState(ctx context.Context) *Heartbeat {
	data, err := c.store.Get(ctx, KeyState)
	if err != nil {
		return nil
	}
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return nil
	}
	return &hb
}

// IsRunnerAlive reports whether a heartbeat exists and its pid is a running
// process on this host. Pid reuse is not detected.
func (c *Controls) IsRunnerAlive(ctx context.Context) bool {
	hb := c.ReadState(ctx)
	if hb == nil || hb.PID <= 0 {
		return false
	}
	return processExists(hb.PID)
}

// WaitWhilePaused blocks until the pause marker is gone, polling every
// interval. It returns ctx.Err() if ctx is cancelled first.
func (c *Controls) WaitWhilePaused(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for c.IsPaused(ctx) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
