package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Exit codes reported by the human backend.
const (
	HumanExitDone     = 0
	HumanExitContinue = 1
	HumanExitFailed   = 2
)

// HumanBackend hands the task to the person at the terminal. The timeout is
// ignored; the backend waits for an answer.
type HumanBackend struct {
	in    io.Reader
	out   io.Writer
	isTTY func() bool
}

// NewHuman returns a backend reading from stdin and writing to stdout.
func NewHuman() *HumanBackend {
	return &HumanBackend{
		in:  os.Stdin,
		out: os.Stdout,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// NewHumanWithIO returns a backend bound to the given streams. It always
// reports itself available.
func NewHumanWithIO(in io.Reader, out io.Writer) *HumanBackend {
	return &HumanBackend{in: in, out: out, isTTY: func() bool { return true }}
}

// Name implements Backend.
func (b *HumanBackend) Name() string {
	return string(KindHuman)
}

// CheckAvailable reports whether stdin is an interactive terminal.
func (b *HumanBackend) CheckAvailable(_ context.Context) bool {
	return b.isTTY()
}

// Run shows the prompt and interprets one answer: `done`, `hint: <text>`,
// `failed: <reason>` or `delegate`. Only `done` counts as success.
func (b *HumanBackend) Run(ctx context.Context, prompt, workDir string, _ time.Duration) Result {
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(b.out, "\n%s\nHUMAN IN THE LOOP - YOUR TURN\n%s\n", rule, rule)
	fmt.Fprintf(b.out, "\nThe agents need help. Here is the situation:\n\n%s\n\n%s\n", prompt, rule)
	fmt.Fprintf(b.out, "Working directory: %s\n%s\n", workDir, rule)
	fmt.Fprintln(b.out, "\nWhat would you like to do?")
	fmt.Fprintln(b.out, "1. Complete the task yourself (type 'done' when finished)")
	fmt.Fprintln(b.out, "2. Provide guidance to the AI (type 'hint: <your hint>')")
	fmt.Fprintln(b.out, "3. Mark task as failed (type 'failed: <reason>')")
	fmt.Fprintln(b.out, "4. Delegate back to AI (type 'delegate')")
	fmt.Fprint(b.out, "\nYour response: ")

	reader := bufio.NewReader(b.in)
	response, err := readLine(ctx, reader)
	if err != nil {
		return failed("failed to read human response: %v", err)
	}
	lower := strings.ToLower(response)

	switch {
	case lower == "done":
		fmt.Fprintln(b.out, "\nMake sure you have completed the task, set its status to 'done' on the board and committed your changes.")
		fmt.Fprint(b.out, "Press Enter when ready to continue...")
		if _, err := readLine(ctx, reader); err != nil && err != io.EOF {
			return failed("failed to read human response: %v", err)
		}
		return Result{ExitCode: HumanExitDone, Stdout: "Human completed the task", Success: true}

	case strings.HasPrefix(lower, "hint:"):
		hint := strings.TrimSpace(response[len("hint:"):])
		fmt.Fprintf(b.out, "\nHint recorded: %s\nTask will be delegated back to the AI with your hint.\n", hint)
		return Result{ExitCode: HumanExitContinue, Stderr: "Human provided hint: " + hint}

	case strings.HasPrefix(lower, "failed:"):
		reason := strings.TrimSpace(response[len("failed:"):])
		fmt.Fprintf(b.out, "\nTask marked as failed: %s\n", reason)
		return Result{ExitCode: HumanExitFailed, Stderr: "Human marked task as failed: " + reason}

	case lower == "delegate":
		fmt.Fprintln(b.out, "\nDelegating back to the AI...")
		return Result{ExitCode: HumanExitContinue, Stderr: "Human delegated task back to AI"}

	default:
		fmt.Fprintln(b.out, "\nInvalid response. Task remains in progress.")
		return Result{ExitCode: HumanExitContinue, Stderr: "Human provided unclear response: " + response}
	}
}

// readLine reads one trimmed line, giving up when ctx is cancelled. The
// reading goroutine is abandoned in that case; stdin stays blocked until the
// next newline.
func readLine(ctx context.Context, r *bufio.Reader) (string, error) {
	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && !(res.err == io.EOF && res.line != "") {
			return strings.TrimSpace(res.line), res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}
