// Package addressing decides which agents must act on a message.
//
// Rules are evaluated in order:
//  1. An agent never reacts to its own output.
//  2. Turn-limit redirects are never reacted to (loop prevention).
//  3. System and anonymous broadcasts are processed by every agent.
//  4. Otherwise the first valid mention decides: a human message without a
//     mention addresses everyone, an agent message without a mention addresses
//     nobody, and a mention addresses exactly the agent it names.
package addressing

import (
	"regexp"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/mention"
)

var turnLimitPattern = regexp.MustCompile(`(?i)turn limit reached \(\d+ llm calls?\)`)

// IsTurnLimitMessage reports whether content carries the canonical turn-limit
// redirect wording produced by core.TurnLimitContent.
func IsTurnLimitMessage(content string) bool {
	return turnLimitPattern.MatchString(content)
}

// ShouldRespond reports whether agent must act on msg.
func ShouldRespond(agent core.AgentProfile, msg core.Message) bool {
	return Decide(agent, msg).Respond
}

// Reason names the rule that produced a Decision.
type Reason string

// Decision reasons, one per rule branch.
const (
	ReasonOwnMessage      Reason = "own-message"
	ReasonTurnLimit       Reason = "turn-limit-redirect"
	ReasonSystemBroadcast Reason = "system-broadcast"
	ReasonHumanBroadcast  Reason = "human-broadcast"
	ReasonAgentBroadcast  Reason = "agent-broadcast"
	ReasonMentioned       Reason = "mentioned"
	ReasonNotMentioned    Reason = "not-mentioned"
)

// Decision is the outcome of evaluating the addressing rules for one agent.
type Decision struct {
	Respond bool
	Reason  Reason
}

// Decide evaluates the addressing rules and reports which one applied.
func Decide(agent core.AgentProfile, msg core.Message) Decision {
	if core.SameName(msg.Sender, agent.Name) {
		return Decision{Respond: false, Reason: ReasonOwnMessage}
	}

	if IsTurnLimitMessage(msg.Content) {
		return Decision{Respond: false, Reason: ReasonTurnLimit}
	}

	if msg.FromSystem() {
		return Decision{Respond: true, Reason: ReasonSystemBroadcast}
	}

	first, ok := mention.First(msg.Content)
	if !ok {
		if msg.FromHuman() {
			return Decision{Respond: true, Reason: ReasonHumanBroadcast}
		}
		return Decision{Respond: false, Reason: ReasonAgentBroadcast}
	}

	if mention.Equal(first, agent.Name) {
		return Decision{Respond: true, Reason: ReasonMentioned}
	}

	return Decision{Respond: false, Reason: ReasonNotMentioned}
}
