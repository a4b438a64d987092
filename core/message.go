package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known non-agent senders.
const (
	SenderHuman  = "human"
	SenderSystem = "system"
)

// Message is a single chat record exchanged inside a world. After creation it
// must be treated as immutable; use the With* helpers to derive variants.
type Message struct {
	ID               string    `json:"id"`
	ChatID           string    `json:"chat_id,omitempty"`
	Content          string    `json:"content"`
	Sender           string    `json:"sender"`
	CreatedAt        time.Time `json:"created_at"`
	ReplyToMessageID string    `json:"reply_to_message_id,omitempty"`
}

// NewMessage creates a message with a fresh id and a UTC timestamp.
func NewMessage(sender, content string) Message {
	return Message{
		ID:        NewID(),
		Content:   content,
		Sender:    sender,
		CreatedAt: time.Now().UTC(),
	}
}

// NewReply creates a message authored by sender that replies to parent. The
// chat id is inherited from the parent.
func NewReply(sender, content string, parent Message) Message {
	m := NewMessage(sender, content)
	m.ChatID = parent.ChatID
	m.ReplyToMessageID = parent.ID
	return m
}

// WithChat returns a copy of m bound to chatID.
func (m Message) WithChat(chatID string) Message {
	m.ChatID = chatID
	return m
}

// FromHuman reports whether the message was authored by the human participant.
func (m Message) FromHuman() bool { return IsHuman(m.Sender) }

// FromSystem reports whether the message is a system or anonymous broadcast.
func (m Message) FromSystem() bool { return IsSystem(m.Sender) }

// IsHuman reports whether sender names the human participant.
func IsHuman(sender string) bool { return strings.EqualFold(sender, SenderHuman) }

// IsSystem reports whether sender is the system or empty (broadcast).
func IsSystem(sender string) bool {
	return sender == "" || strings.EqualFold(sender, SenderSystem)
}

// IsAgentSender reports whether sender names an agent, i.e. neither the
// human nor the system.
func IsAgentSender(sender string) bool { return !IsHuman(sender) && !IsSystem(sender) }

// SameName compares two participant names case-insensitively.
func SameName(a, b string) bool { return strings.EqualFold(a, b) }

// NewID generates a new unique identifier for messages and events.
func NewID() string { return uuid.NewString() }
