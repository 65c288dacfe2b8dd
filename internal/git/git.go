// Package git reads repository state for status reports.
package git

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommandTimeout bounds every git invocation.
const CommandTimeout = 5 * time.Second

// CommandContext is the function used to create commands (allows mocking in tests).
var CommandContext = exec.CommandContext

// Status represents the git workspace status.
type Status struct {
	Clean bool
	Files []string
}

func output(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	cmd := CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// GetStatus returns the git workspace status for the given directory.
// If dir is empty, uses the current working directory.
func GetStatus(ctx context.Context, dir string) (*Status, error) {
	out, err := output(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// XY status, a space, then the path: "?? file.txt", " M file.txt"
		if len(line) > 3 {
			files = append(files, line[3:])
		} else {
			files = append(files, strings.TrimSpace(line))
		}
	}

	return &Status{
		Clean: len(files) == 0,
		Files: files,
	}, nil
}

// RecentLog returns up to n one-line commit summaries, newest first.
// A directory without commits yields an error from git.
func RecentLog(ctx context.Context, dir string, n int) ([]string, error) {
	out, err := output(ctx, dir, "log", "--oneline", "-"+strconv.Itoa(n))
	if err != nil {
		return nil, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(ctx context.Context, dir string) bool {
	out, err := output(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}
