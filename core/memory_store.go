package core

import (
	"context"
	"time"
)

// Role is the conversational role of a memory entry from the owner's
// perspective.
type Role string

const (
	// RoleUser marks entries the owner heard from someone else.
	RoleUser Role = "user"
	// RoleAssistant marks entries the owner authored itself.
	RoleAssistant Role = "assistant"
)

// MemoryEntry is one replicated copy of a message inside the private memory of
// OwnerAgentID. Entries are append-only and unique per (MessageID, OwnerAgentID).
//
// Sender is rewritten to the owner for copies of other agents' messages, with
// the true author kept in FromAgentID. Human copies keep Sender "human" and an
// empty FromAgentID.
type MemoryEntry struct {
	MessageID        string    `json:"message_id"`
	OwnerAgentID     string    `json:"owner_agent_id"`
	ChatID           string    `json:"chat_id,omitempty"`
	Role             Role      `json:"role"`
	Sender           string    `json:"sender"`
	FromAgentID      string    `json:"from_agent_id,omitempty"`
	Content          string    `json:"content"`
	CreatedAt        time.Time `json:"created_at"`
	ReplyToMessageID string    `json:"reply_to_message_id,omitempty"`
}

// Key identifies the entry inside the replicated memory space.
func (e MemoryEntry) Key() EntryKey { return EntryKey{MessageID: e.MessageID, Owner: e.OwnerAgentID} }

// IsHumanCopy reports whether the entry is a copy of a human-authored message.
func (e MemoryEntry) IsHumanCopy() bool {
	return e.Role == RoleUser && IsHuman(e.Sender) && e.FromAgentID == ""
}

// Author returns the true author of the underlying message.
func (e MemoryEntry) Author() string {
	if e.FromAgentID != "" {
		return e.FromAgentID
	}
	return e.Sender
}

// EntryKey is the idempotency key of replication.
type EntryKey struct {
	MessageID string
	Owner     string
}

// MemoryStore is the only storage surface the replicator depends on.
// Implementations must be safe for concurrent use and return history in
// append order.
type MemoryStore interface {
	AppendToAgentMemory(ctx context.Context, agentID string, entry MemoryEntry) error
	GetAgentConversationHistory(ctx context.Context, agentID string) ([]MemoryEntry, error)
}

// FilterChat returns the entries of entries that belong to chatID. An empty
// chatID returns the input unchanged.
func FilterChat(entries []MemoryEntry, chatID string) []MemoryEntry {
	if chatID == "" {
		return entries
	}
	out := make([]MemoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.ChatID == chatID {
			out = append(out, e)
		}
	}
	return out
}
