// Package compose turns an agent's raw model output into the message the
// agent publishes.
package compose

import (
	"strings"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/mention"
)

// PassTag is the in-band command an agent emits to hand control back to the
// human. Matching is case-insensitive and position independent.
const PassTag = "<world>pass</world>"

// Kind classifies a composed reply.
type Kind int

const (
	// KindEmpty means the model produced nothing worth publishing.
	KindEmpty Kind = iota
	// KindMessage is an ordinary chat reply authored by the agent.
	KindMessage
	// KindPassControl is a system-authored handoff to the human.
	KindPassControl
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindPassControl:
		return "pass-control"
	default:
		return "empty"
	}
}

// Reply is the result of composing one model output.
type Reply struct {
	Kind    Kind
	Message core.Message
}

// HasMessage reports whether the reply carries something to publish.
func (r Reply) HasMessage() bool { return r.Kind != KindEmpty }

// ContainsPass reports whether raw contains the pass command.
func ContainsPass(raw string) bool { return strings.Contains(strings.ToLower(raw), PassTag) }

// ComposeReply post-processes raw, produced by agent in response to trigger.
//
// A pass command anywhere in raw yields a system message handing control to
// the human and nothing else. Otherwise leading self-mentions are removed and,
// when trigger came from another agent and auto-reply is enabled, the content
// is prefixed with a mention of that agent unless it already starts with one.
func ComposeReply(agent core.AgentProfile, raw string, trigger core.Message) Reply {
	if ContainsPass(raw) {
		msg := core.NewReply(core.SenderSystem, core.PassControlContent(agent.Name), trigger)
		return Reply{Kind: KindPassControl, Message: msg}
	}

	content := stripSelfMentions(strings.TrimSpace(raw), agent.Name)
	if content == "" {
		return Reply{Kind: KindEmpty}
	}

	target := trigger.Sender
	if agent.AutoReply && core.IsAgentSender(target) && !core.SameName(target, agent.Name) {
		if first, ok := mention.First(content); !ok || !mention.Equal(first, target) {
			content = "@" + target + " " + content
		}
	}

	return Reply{Kind: KindMessage, Message: core.NewReply(agent.Name, content, trigger)}
}

// stripSelfMentions drops leading "@name" tokens addressing the author.
func stripSelfMentions(content, name string) string {
	for {
		if !strings.HasPrefix(content, "@") {
			return content
		}

		first, ok := mention.First(content)
		if !ok || !mention.Equal(first, name) {
			return content
		}

		// mention tokens are maximal, so a prefix match ends on a boundary
		token := "@" + first
		if !strings.HasPrefix(content, token) {
			return content
		}

		content = strings.TrimLeft(content[len(token):], " \t\r\n,:")
	}
}
