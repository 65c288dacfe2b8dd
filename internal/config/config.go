// Package config loads wiggum.yaml and resolves the paths and defaults the
// other packages run with.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pablasso/wiggum/internal/agent"
	"github.com/pablasso/wiggum/internal/control"
	"github.com/pablasso/wiggum/internal/routing"
)

// FileName is the default configuration file name.
const FileName = "wiggum.yaml"

// Environment variables that override file settings.
const (
	EnvLogLevel     = "WIGGUM_LOG_LEVEL"
	EnvRedisAddr    = "WIGGUM_REDIS_ADDR"
	EnvControlStore = "WIGGUM_CONTROL_STORE"
)

// ProjectConfig describes the project being worked on.
type ProjectConfig struct {
	Name    string `yaml:"name"`
	Kanban  string `yaml:"kanban"`
	WorkDir string `yaml:"work_dir"`
}

// AgentConfig selects the backend used when routing is not configured.
type AgentConfig struct {
	Backend    agent.Kind `yaml:"backend"`
	Model      string     `yaml:"model"`
	Timeout    int        `yaml:"timeout"` // seconds per iteration
	APIBaseURL string     `yaml:"api_base_url,omitempty"`
	APIKeyEnv  string     `yaml:"api_key_env,omitempty"`
	Binary     string     `yaml:"binary,omitempty"`
}

// BackendConfig converts the section into a backend factory config.
func (a AgentConfig) BackendConfig() agent.Config {
	return agent.Config{
		Backend:    a.Backend,
		Model:      a.Model,
		APIBaseURL: a.APIBaseURL,
		APIKeyEnv:  a.APIKeyEnv,
		Binary:     a.Binary,
	}
}

// TimeoutDuration returns the per-iteration timeout.
func (a AgentConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// RunnerConfig controls the loop.
type RunnerConfig struct {
	MaxIterations   int    `yaml:"max_iterations"`
	SleepBetween    int    `yaml:"sleep_between"` // seconds
	PausePoll       int    `yaml:"pause_poll"`    // seconds
	CommitAfterTask bool   `yaml:"commit_after_task"`
	CommitFormat    string `yaml:"commit_format"`
}

// DashboardConfig configures the HTTP API.
type DashboardConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	RefreshInterval int    `yaml:"refresh_interval"` // seconds
}

// Addr returns host:port.
func (d DashboardConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// PromptConfig adds project context to every prompt.
type PromptConfig struct {
	TechStack    string `yaml:"tech_stack"`
	Conventions  string `yaml:"conventions"`
	ExtraContext string `yaml:"extra_context"`
}

// ControlConfig selects where control values are stored.
type ControlConfig struct {
	Store       string `yaml:"store"`
	RedisAddr   string `yaml:"redis_addr,omitempty"`
	RedisPrefix string `yaml:"redis_prefix,omitempty"`
}

// LogConfig configures the runner log.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the root of wiggum.yaml.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Agent     AgentConfig     `yaml:"agent"`
	Runner    RunnerConfig    `yaml:"runner"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Routing   *routing.Config `yaml:"routing,omitempty"`
	Control   ControlConfig   `yaml:"control"`
	Log       LogConfig       `yaml:"log"`

	// baseDir resolves relative paths; it is the directory holding the file.
	baseDir string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:    "Wiggum Project",
			Kanban:  "kanban.json",
			WorkDir: ".",
		},
		Agent: AgentConfig{
			Backend: agent.KindOpenCode,
			Model:   "vllm/qwen3-coder-next",
			Timeout: 600,
		},
		Runner: RunnerConfig{
			MaxIterations:   50,
			SleepBetween:    3,
			PausePoll:       2,
			CommitAfterTask: true,
			CommitFormat:    "{task_id}: {task_title}",
		},
		Dashboard: DashboardConfig{
			Host:            "0.0.0.0",
			Port:            3333,
			RefreshInterval: 15,
		},
		Control: ControlConfig{
			Store: control.BackendFile,
		},
		Log: LogConfig{
			Level: "info",
			File:  "wiggum.log",
		},
		baseDir: ".",
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file yields the defaults; an empty file too.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Control.RedisAddr = v
	}
	if v := os.Getenv(EnvControlStore); v != "" {
		c.Control.Store = strings.ToLower(strings.TrimSpace(v))
	}
}

// Validate checks values the loader cannot check by type alone.
func (c *Config) Validate() error {
	if !c.Agent.Backend.Valid() {
		return fmt.Errorf("agent.backend %q is not supported", c.Agent.Backend)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be positive")
	}
	if c.Runner.SleepBetween < 0 || c.Runner.PausePoll < 0 {
		return fmt.Errorf("runner intervals must not be negative")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port %d is out of range", c.Dashboard.Port)
	}
	switch c.Control.Store {
	case "", control.BackendFile:
	case control.BackendRedis:
		if c.Control.RedisAddr == "" {
			return fmt.Errorf("control.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("control.store must be %q or %q", control.BackendFile, control.BackendRedis)
	}
	if c.Routing != nil {
		if _, err := routing.NewRouter(*c.Routing); err != nil {
			return fmt.Errorf("routing: %w", err)
		}
	}
	return nil
}

// Overrides carries command-line values that replace file settings.
// Zero values leave the setting alone.
type Overrides struct {
	MaxIterations int
	Agent         string
	Model         string
	Port          int
	Host          string
}

// ApplyOverrides replaces settings with the non-zero values in o.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.MaxIterations > 0 {
		c.Runner.MaxIterations = o.MaxIterations
	}
	if o.Agent != "" {
		kind, err := agent.ParseKind(o.Agent)
		if err != nil {
			return err
		}
		c.Agent.Backend = kind
	}
	if o.Model != "" {
		c.Agent.Model = o.Model
	}
	if o.Port > 0 {
		c.Dashboard.Port = o.Port
	}
	if o.Host != "" {
		c.Dashboard.Host = o.Host
	}
	return nil
}

// WorkDir returns the absolute project working directory.
func (c *Config) WorkDir() string {
	return absPath(resolvePath(c.baseDir, c.Project.WorkDir))
}

// KanbanPath returns the absolute board file path.
func (c *Config) KanbanPath() string {
	return absPath(resolvePath(c.WorkDir(), c.Project.Kanban))
}

// LogPath returns the absolute runner log path.
func (c *Config) LogPath() string {
	return absPath(resolvePath(c.WorkDir(), c.Log.File))
}

// PausePollInterval returns the pause poll interval.
func (c *Config) PausePollInterval() time.Duration {
	return time.Duration(c.Runner.PausePoll) * time.Second
}

// SleepBetween returns the pause between iterations.
func (c *Config) SleepBetween() time.Duration {
	return time.Duration(c.Runner.SleepBetween) * time.Second
}

// RefreshInterval returns the status refresh interval for viewers.
func (c *Config) RefreshInterval() time.Duration {
	if c.Dashboard.RefreshInterval <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Dashboard.RefreshInterval) * time.Second
}

// ControlOptions returns the options for opening the control store.
func (c *Config) ControlOptions() control.OpenOptions {
	return control.OpenOptions{
		Backend:     c.Control.Store,
		WorkDir:     c.WorkDir(),
		RedisAddr:   c.Control.RedisAddr,
		RedisPrefix: c.Control.RedisPrefix,
	}
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
