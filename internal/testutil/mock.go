// Package testutil provides helpers shared by wiggum package tests.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/pablasso/wiggum/internal/board"
)

// MockCommandFunc stands in for agent.CommandContext: every agent
// invocation prints output and exits 0.
func MockCommandFunc(output string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "echo", "-n", output)
	}
}

// SampleBoard returns the init template with the first task done and the
// second failed, leaving the rest todo.
func SampleBoard() *board.Board {
	b := board.Template()
	b.Milestones[0].Tasks[0].Status = board.StatusDone
	b.Milestones[0].Tasks[1].Status = board.StatusFailed
	b.Milestones[0].Tasks[1].Note = "missing toolchain"
	return b
}

// WriteBoard saves b to path, failing the test on error.
func WriteBoard(t *testing.T, path string, b *board.Board) {
	t.Helper()
	if err := board.NewManager(path).Save(b); err != nil {
		t.Fatalf("failed to write board %s: %v", path, err)
	}
}

// SetupTestDir chdirs into a fresh temp dir for commands that default to
// the working directory, and returns its symlink-free path.
func SetupTestDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	// macOS temp dirs live behind /var -> /private/var.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change to temp dir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	return dir
}
