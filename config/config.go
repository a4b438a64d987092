// Package config loads the agentworld configuration from YAML, an optional
// .env file and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentworld/agent"
	"github.com/hupe1980/agentworld/core"
)

// Memory backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the root configuration document.
type Config struct {
	World   WorldConfig   `yaml:"world"`
	Agents  []AgentConfig `yaml:"agents"`
	LLM     LLMConfig     `yaml:"llm"`
	Memory  MemoryConfig  `yaml:"memory"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// WorldConfig describes the world hosted by the process.
type WorldConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	ChatID      string `yaml:"chat_id"`
	TurnLimit   int    `yaml:"turn_limit"`
	Description string `yaml:"description"`
}

// AgentConfig describes one agent. Provider settings are inlined.
type AgentConfig struct {
	Name                string `yaml:"name"`
	Description         string `yaml:"description"`
	SystemPrompt        string `yaml:"system_prompt"`
	TurnLimit           int    `yaml:"turn_limit"`
	AutoReply           *bool  `yaml:"auto_reply"`
	core.ProviderConfig `yaml:",inline"`
}

// LLMConfig holds settings shared by all model calls.
type LLMConfig struct {
	Timeout string `yaml:"timeout"`
	Stream  bool   `yaml:"stream"`
}

// MemoryConfig selects the agent memory backend.
type MemoryConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a single-chat world with three mock agents.
func DefaultConfig() *Config {
	return &Config{
		World: WorldConfig{
			ID:        "default",
			Name:      "Default World",
			ChatID:    "main",
			TurnLimit: core.DefaultTurnLimit,
		},
		Agents: []AgentConfig{
			{Name: "alice", ProviderConfig: core.ProviderConfig{Provider: core.ProviderMock}},
			{Name: "bob", ProviderConfig: core.ProviderConfig{Provider: core.ProviderMock}},
			{Name: "carol", ProviderConfig: core.ProviderConfig{Provider: core.ProviderMock}},
		},
		LLM:     LLMConfig{Timeout: "60s"},
		Memory:  MemoryConfig{Backend: BackendMemory, Path: filepath.Join(".agentworld", "memory.db")},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	return nil
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	keys := map[core.Provider]string{
		core.ProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
		core.ProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
	}

	for i := range c.Agents {
		a := &c.Agents[i]
		if a.APIKey == "" {
			a.APIKey = keys[a.Provider]
		}
	}

	if url := os.Getenv("AGENTWORLD_REDIS_URL"); url != "" {
		c.Memory.RedisURL = url
	}
	if backend := os.Getenv("AGENTWORLD_MEMORY_BACKEND"); backend != "" {
		c.Memory.Backend = backend
	}
	if level := os.Getenv("AGENTWORLD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("AGENTWORLD_TURN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.World.TurnLimit = n
		}
	}
}

// LLMTimeout returns the per-call LLM timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []core.Provider{core.ProviderMock, core.ProviderOpenAI, core.ProviderAnthropic}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.World.ID == "" {
		return fmt.Errorf("world id must not be empty")
	}
	if c.World.TurnLimit < 0 {
		return fmt.Errorf("world turn_limit must not be negative")
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}

	seen := make(map[string]struct{}, len(c.Agents))

	for _, a := range c.Agents {
		if err := agent.ValidateName(a.Name); err != nil {
			return err
		}

		key := strings.ToLower(a.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateAgent, a.Name)
		}
		seen[key] = struct{}{}

		if !validProvider(a.Provider) {
			return fmt.Errorf("agent %s: invalid provider %q (valid: %v)", a.Name, a.Provider, ValidProviders)
		}
		if a.TurnLimit < 0 {
			return fmt.Errorf("agent %s: turn_limit must not be negative", a.Name)
		}
	}

	switch c.Memory.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Memory.Path == "" {
			return fmt.Errorf("memory path required for sqlite backend")
		}
	case BackendRedis:
		if c.Memory.RedisURL == "" {
			return fmt.Errorf("memory redis_url required for redis backend (or set AGENTWORLD_REDIS_URL)")
		}
	default:
		return fmt.Errorf("invalid memory backend: %s", c.Memory.Backend)
	}

	if c.LLM.Timeout != "" {
		if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			return fmt.Errorf("invalid llm timeout: %w", err)
		}
	}

	return nil
}

func validProvider(p core.Provider) bool {
	for _, v := range ValidProviders {
		if p == v {
			return true
		}
	}
	return p == ""
}

// WorldConfig converts the world section into a core.WorldConfig.
func (c *Config) WorldConfig() core.WorldConfig {
	return core.WorldConfig{
		ID:          c.World.ID,
		Name:        c.World.Name,
		ChatID:      c.World.ChatID,
		TurnLimit:   c.World.TurnLimit,
		Description: c.World.Description,
	}
}

// AgentProfiles converts the agent section into profiles.
func (c *Config) AgentProfiles() []core.AgentProfile {
	out := make([]core.AgentProfile, 0, len(c.Agents))

	for _, a := range c.Agents {
		p := core.NewAgentProfile(a.Name)
		p.Description = a.Description
		p.SystemPrompt = a.SystemPrompt
		p.TurnLimit = a.TurnLimit
		p.Provider = a.ProviderConfig

		if p.Provider.Provider == "" {
			p.Provider.Provider = core.ProviderMock
		}
		if a.AutoReply != nil {
			p.AutoReply = *a.AutoReply
		}

		out = append(out, p)
	}

	return out
}
