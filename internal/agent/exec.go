package agent

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock command execution.
var CommandContext = exec.CommandContext

// LookPath resolves backend binaries. Tests replace it to fake installs.
var LookPath = exec.LookPath

// waitDelay bounds how long Run waits for output pipes after the agent's
// process group has been killed.
const waitDelay = 2 * time.Second

// ExecBackend runs a coding-agent CLI once per iteration.
type ExecBackend struct {
	name    string
	label   string
	binary  string
	argsFor func(prompt string) []string
}

// NewOpenCode returns a backend running `opencode run -m <model> <prompt>`.
// Stdin is left unset, so the CLI reads from the null device.
func NewOpenCode(model, binary string) *ExecBackend {
	if binary == "" {
		binary = "opencode"
	}
	return &ExecBackend{
		name:   string(KindOpenCode),
		label:  "OpenCode",
		binary: binary,
		argsFor: func(prompt string) []string {
			return []string{"run", "-m", model, prompt}
		},
	}
}

// NewClaudeCode returns a backend running `claude -p <prompt>`, adding
// `--model` when a model is configured.
func NewClaudeCode(model, binary string) *ExecBackend {
	if binary == "" {
		binary = "claude"
	}
	return &ExecBackend{
		name:   string(KindClaudeCode),
		label:  "Claude Code",
		binary: binary,
		argsFor: func(prompt string) []string {
			args := []string{"-p", prompt}
			if model != "" {
				args = append(args, "--model", model)
			}
			return args
		},
	}
}

// Name implements Backend.
func (b *ExecBackend) Name() string {
	return b.name
}

// CheckAvailable reports whether the CLI binary is on PATH.
func (b *ExecBackend) CheckAvailable(_ context.Context) bool {
	_, err := LookPath(b.binary)
	return err == nil
}

// Run implements Backend.
func (b *ExecBackend) Run(ctx context.Context, prompt, workDir string, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := CommandContext(ctx, b.binary, b.argsFor(prompt)...)
	cmd.Dir = workDir
	configureProcess(cmd)
	cmd.Cancel = func() error { return terminateProcess(cmd) }
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String(), Success: true}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failed("%s timed out after %v", b.label, timeout)
	}
	if ctx.Err() != nil {
		return failed("%s was cancelled", b.label)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Success:  false,
		}
	}
	return failed("%s execution failed: %v", b.label, err)
}
