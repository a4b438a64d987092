package core

import "fmt"

// DefaultTurnLimit is the world-level LLM call budget applied when no limit
// is configured.
const DefaultTurnLimit = 5

// WorldConfig is the static description of a world: its identity, default
// chat and the turn budget shared by all agents unless overridden.
type WorldConfig struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name"`
	ChatID      string `json:"chat_id,omitempty" yaml:"chat_id"`
	TurnLimit   int    `json:"turn_limit" yaml:"turn_limit"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// EffectiveTurnLimit returns the configured limit or DefaultTurnLimit.
func (w WorldConfig) EffectiveTurnLimit() int {
	if w.TurnLimit > 0 {
		return w.TurnLimit
	}
	return DefaultTurnLimit
}

// TurnLimitContent renders the canonical redirect an agent emits once its
// LLM call budget is exhausted.
func TurnLimitContent(limit int) string {
	return fmt.Sprintf("@%s Turn limit reached (%d LLM calls). Please take control of the conversation.", SenderHuman, limit)
}

// PassControlContent renders the handoff published when an agent passes
// control back to the human.
func PassControlContent(agentName string) string {
	return fmt.Sprintf("@%s %s is passing control to you", SenderHuman, agentName)
}
