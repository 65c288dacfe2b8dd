package routing

import (
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pablasso/wiggum/internal/agent"
)

// Rule routes matching tasks to a level. Empty filters match anything; all
// present filters must match.
type Rule struct {
	TaskType      string `yaml:"task_type,omitempty"`
	MilestoneID   string `yaml:"milestone_id,omitempty"`
	TaskIDPattern string `yaml:"task_id_pattern,omitempty"`
	Level         Level  `yaml:"agent_level"`
	Model         string `yaml:"model,omitempty"`
}

// EscalationPolicy controls automatic escalation of slow tasks.
type EscalationPolicy struct {
	Enabled                bool    `yaml:"enabled"`
	TriggerAfterIterations int     `yaml:"trigger_after_iterations"`
	TriggerAfterSeconds    int     `yaml:"trigger_after_duration"`
	Chain                  []Level `yaml:"escalation_chain"`
}

// Config is the full routing configuration.
type Config struct {
	Agents       map[Level]agent.Config `yaml:"agents"`
	Rules        []Rule                 `yaml:"rules"`
	DefaultLevel Level                  `yaml:"default_agent"`
	Escalation   EscalationPolicy       `yaml:"escalation"`
}

// DefaultAgents returns the built-in backend for each level.
func DefaultAgents() map[Level]agent.Config {
	return map[Level]agent.Config{
		LevelRalph: {
			Backend:     agent.KindOpenCode,
			Model:       "vllm/qwen3-coder-next",
			Description: "Local model for basic tasks",
		},
		LevelEddie: {
			Backend:     agent.KindOpenCode,
			Model:       "vllm/qwen3-32b-instruct",
			Description: "Better local model for moderate complexity",
		},
		LevelLou: {
			Backend:     agent.KindClaudeCode,
			Model:       "claude-sonnet-4-5",
			Description: "Frontier model for complex tasks",
		},
		LevelMatt: {
			Backend:     agent.KindHuman,
			Description: "Human in the loop",
		},
	}
}

// DefaultEscalation returns a disabled policy with the standard thresholds
// and chain.
func DefaultEscalation() EscalationPolicy {
	return EscalationPolicy{
		Enabled:                false,
		TriggerAfterIterations: 3,
		TriggerAfterSeconds:    1800,
		Chain:                  append([]Level(nil), Levels...),
	}
}

// DefaultConfig returns the routing configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Agents:       DefaultAgents(),
		DefaultLevel: LevelRalph,
		Escalation:   DefaultEscalation(),
	}
}

// UnmarshalYAML decodes a routing section on top of DefaultConfig, so a
// file only needs to mention what it changes. Agent entries are merged per
// level; the chain and rules are replaced.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	p := plain(DefaultConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

// Router evaluates rules and the escalation policy.
type Router struct {
	cfg      Config
	patterns []*regexp.Regexp
}

// NewRouter validates cfg and compiles rule patterns. Patterns are anchored
// at the start of the task ID, so "M2" matches "M2.1" but not "XM2".
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Agents == nil {
		cfg.Agents = DefaultAgents()
	}
	if cfg.DefaultLevel == 0 {
		cfg.DefaultLevel = LevelRalph
	}
	if !cfg.DefaultLevel.Valid() {
		return nil, fmt.Errorf("invalid default level %d", int(cfg.DefaultLevel))
	}

	r := &Router{cfg: cfg, patterns: make([]*regexp.Regexp, len(cfg.Rules))}
	for i, rule := range cfg.Rules {
		if !rule.Level.Valid() {
			return nil, fmt.Errorf("routing rule %d: missing or invalid agent_level", i)
		}
		if rule.TaskIDPattern == "" {
			continue
		}
		re, err := regexp.Compile("^(?:" + rule.TaskIDPattern + ")")
		if err != nil {
			return nil, fmt.Errorf("routing rule %d: invalid task_id_pattern: %w", i, err)
		}
		r.patterns[i] = re
	}
	return r, nil
}

// Config returns the router configuration.
func (r *Router) Config() Config {
	return r.cfg
}

// DefaultLevel returns the level for tasks no rule matches.
func (r *Router) DefaultLevel() Level {
	return r.cfg.DefaultLevel
}

// ChainStart returns the first level of the escalation chain, falling back
// to the default level when the chain is empty.
func (r *Router) ChainStart() Level {
	if len(r.cfg.Escalation.Chain) > 0 {
		return r.cfg.Escalation.Chain[0]
	}
	return r.cfg.DefaultLevel
}

// AgentConfig returns the backend configured for level.
func (r *Router) AgentConfig(level Level) agent.Config {
	return r.cfg.Agents[level]
}

func (r *Router) matches(i int, taskID, taskType, milestoneID string) bool {
	rule := r.cfg.Rules[i]
	if rule.TaskType != "" && rule.TaskType != taskType {
		return false
	}
	if rule.MilestoneID != "" && rule.MilestoneID != milestoneID {
		return false
	}
	if re := r.patterns[i]; re != nil && !re.MatchString(taskID) {
		return false
	}
	return true
}

// RouteTask picks the level and backend for a task. The first matching rule
// wins and may override the model. Without a match the task stays at
// currentLevel, or the default level when currentLevel is zero.
func (r *Router) RouteTask(taskID, taskType, milestoneID string, currentLevel Level) (Level, agent.Config) {
	for i, rule := range r.cfg.Rules {
		if !r.matches(i, taskID, taskType, milestoneID) {
			continue
		}
		cfg := r.cfg.Agents[rule.Level]
		if rule.Model != "" {
			cfg.Model = rule.Model
		}
		return rule.Level, cfg
	}

	level := currentLevel
	if level == 0 {
		level = r.cfg.DefaultLevel
	}
	return level, r.cfg.Agents[level]
}

// Escalate returns the level after current in the chain. ok is false when
// escalation is disabled, current is last or current is not in the chain.
func (r *Router) Escalate(current Level) (next Level, ok bool) {
	if !r.cfg.Escalation.Enabled {
		return 0, false
	}
	chain := r.cfg.Escalation.Chain
	for i, l := range chain {
		if l == current {
			if i+1 < len(chain) {
				return chain[i+1], true
			}
			return 0, false
		}
	}
	return 0, false
}

// ShouldEscalate reports whether a task has used enough iterations or time
// to move up a level.
func (r *Router) ShouldEscalate(iterations int, elapsed time.Duration) bool {
	p := r.cfg.Escalation
	if !p.Enabled {
		return false
	}
	if iterations >= p.TriggerAfterIterations {
		return true
	}
	return elapsed >= time.Duration(p.TriggerAfterSeconds)*time.Second
}
