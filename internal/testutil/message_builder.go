package testutil

import (
	"time"

	"github.com/hupe1980/agentworld/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().From("alice").Text("@bob hi").Chat("c1").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	msg core.Message
}

// NewMessageBuilder creates a builder for a human message with a fresh id.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msg: core.NewMessage(core.SenderHuman, "")}
}

// From sets the sender (chainable).
func (b *MessageBuilder) From(sender string) *MessageBuilder { b.msg.Sender = sender; return b }

// Text sets the content (chainable).
func (b *MessageBuilder) Text(t string) *MessageBuilder { b.msg.Content = t; return b }

// ID overrides the generated id (chainable). Use where determinism matters.
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.msg.ID = id; return b }

// Chat sets the chat id (chainable).
func (b *MessageBuilder) Chat(id string) *MessageBuilder { b.msg.ChatID = id; return b }

// At sets the creation time (chainable).
func (b *MessageBuilder) At(ts time.Time) *MessageBuilder { b.msg.CreatedAt = ts; return b }

// ReplyTo links the message to parent and inherits its chat (chainable).
func (b *MessageBuilder) ReplyTo(parent core.Message) *MessageBuilder {
	b.msg.ReplyToMessageID = parent.ID
	b.msg.ChatID = parent.ChatID
	return b
}

// Build returns the constructed message.
func (b *MessageBuilder) Build() core.Message { return b.msg }

// Profiles returns default profiles for names.
func Profiles(names ...string) []core.AgentProfile {
	out := make([]core.AgentProfile, 0, len(names))
	for _, n := range names {
		out = append(out, core.NewAgentProfile(n))
	}
	return out
}
