package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/pablasso/wiggum/internal/testutil"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "opencode", want: KindOpenCode},
		{in: "claude_code", want: KindClaudeCode},
		{in: " API ", want: KindAPI},
		{in: "human", want: KindHuman},
		{in: "codex", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{name: "opencode", cfg: Config{Backend: KindOpenCode, Model: "vllm/qwen3-coder-next"}, wantName: "opencode"},
		{name: "opencode needs model", cfg: Config{Backend: KindOpenCode}, wantErr: true},
		{name: "claude", cfg: Config{Backend: KindClaudeCode}, wantName: "claude_code"},
		{name: "api", cfg: Config{Backend: KindAPI, Model: "m"}, wantName: "api"},
		{name: "human", cfg: Config{Backend: KindHuman}, wantName: "human"},
		{name: "unknown", cfg: Config{Backend: "codex"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := DefaultFactory.New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && b.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.wantName)
			}
		})
	}
}

func TestExecBackend_Args(t *testing.T) {
	var gotName string
	var gotArgs []string
	original := CommandContext
	defer func() { CommandContext = original }()
	CommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName, gotArgs = name, args
		return exec.CommandContext(ctx, "echo", "-n", "ok")
	}

	dir := t.TempDir()
	res := NewOpenCode("vllm/qwen3-coder-next", "").Run(context.Background(), "do it", dir, time.Minute)
	if !res.Success || res.Stdout != "ok" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotName != "opencode" || strings.Join(gotArgs, " ") != "run -m vllm/qwen3-coder-next do it" {
		t.Errorf("unexpected command: %s %v", gotName, gotArgs)
	}

	NewClaudeCode("", "").Run(context.Background(), "do it", dir, time.Minute)
	if gotName != "claude" || strings.Join(gotArgs, " ") != "-p do it" {
		t.Errorf("unexpected command: %s %v", gotName, gotArgs)
	}

	NewClaudeCode("claude-sonnet-4-5", "/opt/bin/claude").Run(context.Background(), "x", dir, time.Minute)
	if gotName != "/opt/bin/claude" || strings.Join(gotArgs, " ") != "-p x --model claude-sonnet-4-5" {
		t.Errorf("unexpected command: %s %v", gotName, gotArgs)
	}
}

func TestExecBackend_Run(t *testing.T) {
	original := CommandContext
	defer func() { CommandContext = original }()

	t.Run("success captures stdout", func(t *testing.T) {
		CommandContext = testutil.MockCommandFunc("task done")
		res := NewOpenCode("m", "").Run(context.Background(), "p", t.TempDir(), time.Minute)
		if !res.Success || res.ExitCode != 0 || res.Stdout != "task done" {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("non-zero exit is reported", func(t *testing.T) {
		CommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "sh", "-c", "echo broken >&2; exit 3")
		}
		res := NewOpenCode("m", "").Run(context.Background(), "p", t.TempDir(), time.Minute)
		if res.Success || res.ExitCode != 3 || strings.TrimSpace(res.Stderr) != "broken" {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		CommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "sleep", "5")
		}
		res := NewClaudeCode("", "").Run(context.Background(), "p", t.TempDir(), 50*time.Millisecond)
		if res.Success || res.ExitCode != -1 || !strings.Contains(res.Stderr, "timed out after 50ms") {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("timeout kills background children", func(t *testing.T) {
		CommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "sh", "-c", "sleep 5 & wait")
		}
		start := time.Now()
		res := NewClaudeCode("", "").Run(context.Background(), "p", t.TempDir(), 200*time.Millisecond)
		elapsed := time.Since(start)
		if elapsed > 3*time.Second {
			t.Errorf("Run took %v, expected it to return shortly after the timeout", elapsed)
		}
		if res.Success || !strings.Contains(res.Stderr, "timed out after 200ms") {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		CommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "/nonexistent/wiggum-agent")
		}
		res := NewOpenCode("m", "").Run(context.Background(), "p", t.TempDir(), time.Minute)
		if res.Success || res.ExitCode != -1 || !strings.Contains(res.Stderr, "execution failed") {
			t.Errorf("unexpected result: %+v", res)
		}
	})
}

func TestExecBackend_CheckAvailable(t *testing.T) {
	original := LookPath
	defer func() { LookPath = original }()

	LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	if !NewOpenCode("m", "").CheckAvailable(context.Background()) {
		t.Error("expected available")
	}

	LookPath = func(file string) (string, error) { return "", errors.New("not found") }
	if NewClaudeCode("", "").CheckAvailable(context.Background()) {
		t.Error("expected unavailable")
	}
}

func TestAPIBackend(t *testing.T) {
	t.Setenv("WIGGUM_TEST_KEY", "secret")

	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			w.WriteHeader(http.StatusOK)
		case "/v1/chat/completions":
			gotAuth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&gotReq)
			if gotReq.Model == "broken" {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"all set"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b := NewAPI("qwen", srv.URL+"/v1/", "WIGGUM_TEST_KEY")
	if !b.CheckAvailable(context.Background()) {
		t.Fatal("expected endpoint available")
	}

	res := b.Run(context.Background(), "hello", "", time.Minute)
	if !res.Success || res.Stdout != "all set" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "qwen" || len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hello" {
		t.Errorf("unexpected request: %+v", gotReq)
	}

	res = NewAPI("broken", srv.URL+"/v1", "WIGGUM_TEST_KEY").Run(context.Background(), "hello", "", time.Minute)
	if res.Success || res.ExitCode != http.StatusServiceUnavailable || !strings.Contains(res.Stderr, "model not loaded") {
		t.Errorf("unexpected result: %+v", res)
	}

	if NewAPI("qwen", "http://127.0.0.1:1/v1", "").CheckAvailable(context.Background()) {
		t.Error("expected unreachable endpoint to be unavailable")
	}
}

func TestHumanBackend(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode int
		wantOK   bool
		wantErr  string
	}{
		{name: "done", input: "done\n\n", wantCode: HumanExitDone, wantOK: true},
		{name: "done without confirmation line", input: "DONE\n", wantCode: HumanExitDone, wantOK: true},
		{name: "hint", input: "hint: try the v2 API\n", wantCode: HumanExitContinue, wantErr: "Human provided hint: try the v2 API"},
		{name: "failed", input: "failed: needs a license\n", wantCode: HumanExitFailed, wantErr: "Human marked task as failed: needs a license"},
		{name: "delegate", input: "delegate\n", wantCode: HumanExitContinue, wantErr: "delegated"},
		{name: "unclear", input: "maybe\n", wantCode: HumanExitContinue, wantErr: "unclear response: maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			b := NewHumanWithIO(strings.NewReader(tt.input), &out)
			res := b.Run(context.Background(), "Implement M1.1", "/work", 0)
			if res.ExitCode != tt.wantCode || res.Success != tt.wantOK {
				t.Errorf("got code=%d success=%v, want code=%d success=%v", res.ExitCode, res.Success, tt.wantCode, tt.wantOK)
			}
			if tt.wantErr != "" && !strings.Contains(res.Stderr, tt.wantErr) {
				t.Errorf("stderr %q does not contain %q", res.Stderr, tt.wantErr)
			}
			if !strings.Contains(out.String(), "Implement M1.1") {
				t.Error("expected prompt to be shown")
			}
		})
	}

	t.Run("closed input", func(t *testing.T) {
		var out bytes.Buffer
		res := NewHumanWithIO(strings.NewReader(""), &out).Run(context.Background(), "p", "/work", 0)
		if res.Success || res.ExitCode != -1 {
			t.Errorf("unexpected result: %+v", res)
		}
	})
}

func TestResult_Output(t *testing.T) {
	r := Result{Stdout: "out\n", Stderr: ""}
	if got := r.Output(); got != "out" {
		t.Errorf("Output() = %q, want %q", got, "out")
	}
}
