// Package agent defines the capability backends the runner delegates task
// iterations to: coding-agent CLIs, an OpenAI-compatible HTTP API and a human
// at the terminal.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a backend implementation.
type Kind string

// Backend kinds
const (
	KindOpenCode   Kind = "opencode"
	KindClaudeCode Kind = "claude_code"
	KindAPI        Kind = "api"
	KindHuman      Kind = "human"
)

// Kinds lists every backend kind in a stable order.
var Kinds = []Kind{KindOpenCode, KindClaudeCode, KindAPI, KindHuman}

// Valid reports whether k is a known backend kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenCode, KindClaudeCode, KindAPI, KindHuman:
		return true
	}
	return false
}

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown agent backend %q", s)
	}
	return k, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so config files reject
// unknown backends at load time.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Result is the outcome of one backend invocation. Faults are reported here
// rather than as errors.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Success  bool
}

// Output returns stdout and stderr joined and trimmed.
func (r Result) Output() string {
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

func failed(format string, args ...interface{}) Result {
	return Result{ExitCode: -1, Stderr: fmt.Sprintf(format, args...)}
}

// Backend runs a single task iteration.
type Backend interface {
	Name() string
	// CheckAvailable reports whether the backend is installed or reachable.
	CheckAvailable(ctx context.Context) bool
	// Run executes prompt in workDir, bounded by timeout. It never returns an
	// error; failures surface as an unsuccessful Result.
	Run(ctx context.Context, prompt, workDir string, timeout time.Duration) Result
}

// Config selects and parameterises a backend.
type Config struct {
	Backend     Kind   `yaml:"backend" json:"backend"`
	Model       string `yaml:"model,omitempty" json:"model,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	APIBaseURL  string `yaml:"api_base_url,omitempty" json:"api_base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	Binary      string `yaml:"binary,omitempty" json:"binary,omitempty"`
}

// Factory builds backends from configuration.
type Factory interface {
	New(cfg Config) (Backend, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(cfg Config) (Backend, error)

// New calls f(cfg).
func (f FactoryFunc) New(cfg Config) (Backend, error) {
	return f(cfg)
}

// DefaultFactory constructs the built-in backends.
var DefaultFactory Factory = FactoryFunc(New)

// New constructs the backend selected by cfg.Backend.
func New(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case KindOpenCode:
		if cfg.Model == "" {
			return nil, fmt.Errorf("opencode backend requires a model")
		}
		return NewOpenCode(cfg.Model, cfg.Binary), nil
	case KindClaudeCode:
		return NewClaudeCode(cfg.Model, cfg.Binary), nil
	case KindAPI:
		if cfg.Model == "" {
			return nil, fmt.Errorf("api backend requires a model")
		}
		return NewAPI(cfg.Model, cfg.APIBaseURL, cfg.APIKeyEnv), nil
	case KindHuman:
		return NewHuman(), nil
	default:
		return nil, fmt.Errorf("unknown agent backend %q", cfg.Backend)
	}
}
