package core

import "time"

// Provider enumerates the supported LLM provider families. Provider specific
// settings live in ProviderConfig; together they form a tagged union that the
// model package dispatches on.
type Provider string

const (
	// ProviderMock selects the deterministic in-process model.
	ProviderMock Provider = "mock"
	// ProviderOpenAI selects the OpenAI chat completions adapter.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic selects the Anthropic messages adapter.
	ProviderAnthropic Provider = "anthropic"
)

// ProviderConfig carries the provider tag plus the settings the adapters need.
type ProviderConfig struct {
	Provider    Provider `json:"provider" yaml:"provider"`
	Model       string   `json:"model,omitempty" yaml:"model"`
	Temperature float64  `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int64    `json:"max_tokens,omitempty" yaml:"max_tokens"`
	APIKey      string   `json:"-" yaml:"api_key"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url"`
}

// AgentProfile describes one agent of a world. The counters (LLMCallCount,
// LastLLMCallAt) are owned by the agent.Governor; callers receive snapshots.
type AgentProfile struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Provider     ProviderConfig `json:"provider"`

	// TurnLimit overrides the world-level limit when > 0.
	TurnLimit int `json:"turn_limit,omitempty"`
	// AutoReply enables the auto-mention of the previous speaker on replies.
	AutoReply bool `json:"auto_reply"`

	LLMCallCount  int       `json:"llm_call_count"`
	LastLLMCallAt time.Time `json:"last_llm_call_at,omitempty"`
}

// NewAgentProfile returns a profile named name with auto-reply enabled and the
// mock provider selected.
func NewAgentProfile(name string) AgentProfile {
	return AgentProfile{
		ID:        name,
		Name:      name,
		AutoReply: true,
		Provider:  ProviderConfig{Provider: ProviderMock},
	}
}

// AgentDirectory resolves agent names to profiles.
type AgentDirectory interface {
	Lookup(name string) (AgentProfile, bool)
}
