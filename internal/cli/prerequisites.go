package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pablasso/wiggum/internal/config"
	"github.com/pablasso/wiggum/internal/control"
	"github.com/pablasso/wiggum/internal/git"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "wiggum.yaml"

// PrerequisiteError represents a failed prerequisite check with helpful remediation info.
type PrerequisiteError struct {
	Check   string
	Message string
	Help    string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s: %s\n\n%s", e.Check, e.Message, e.Help)
}

// requireConfig loads the configuration at path, which must exist.
func requireConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &PrerequisiteError{
			Check:   "Configuration",
			Message: path + " not found",
			Help:    "Run 'wiggum init' first.",
		}
	}
	return config.Load(path)
}

// checkBoard verifies the kanban file exists.
func checkBoard(cfg *config.Config) error {
	if _, err := os.Stat(cfg.KanbanPath()); errors.Is(err, fs.ErrNotExist) {
		return &PrerequisiteError{
			Check:   "Kanban board",
			Message: cfg.KanbanPath() + " not found",
			Help:    "Run 'wiggum init' to create a template board, or fix project.kanban in the config.",
		}
	}
	return nil
}

// checkGitRepo verifies the work dir is a repository. Only relevant when
// agents are asked to commit.
func checkGitRepo(ctx context.Context, dir string) error {
	if !git.IsRepo(ctx, dir) {
		return &PrerequisiteError{
			Check:   "Git repository",
			Message: "Not a git repository",
			Help:    "Agents are told to commit after each task. Run 'git init' or set runner.commit_after_task to false.",
		}
	}
	return nil
}

// openControls opens the configured control store. The close func is never nil.
func openControls(ctx context.Context, cfg *config.Config) (*control.Controls, func() error, error) {
	store, closeStore, err := control.Open(ctx, cfg.ControlOptions())
	if err != nil {
		return nil, closeStore, err
	}
	return control.New(store), closeStore, nil
}
