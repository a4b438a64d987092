package core

import (
	"sync"
	"time"
)

// Chat is the canonical, deduplicated message log of one conversation inside
// a world. It is safe for concurrent access.
type Chat struct {
	ID       string    `json:"id"`
	WorldID  string    `json:"world_id"`
	Messages []Message `json:"messages"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	mu       sync.RWMutex
}

// NewChat creates an empty chat log.
func NewChat(worldID, id string) *Chat {
	now := time.Now()
	return &Chat{ID: id, WorldID: worldID, Messages: []Message{}, Created: now, Updated: now}
}

// AddMessage appends msg updating the Updated timestamp.
func (c *Chat) AddMessage(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, msg)
	c.Updated = time.Now()
}

// GetMessages returns a defensive copy of the message log.
func (c *Chat) GetMessages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return msgs
}

// Clone returns a deep copy of the chat safe for independent mutation.
func (c *Chat) Clone() *Chat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &Chat{ID: c.ID, WorldID: c.WorldID, Messages: make([]Message, len(c.Messages)), Created: c.Created, Updated: c.Updated}
	copy(clone.Messages, c.Messages)
	return clone
}

// ChatStore persists chat logs keyed by world and chat id.
type ChatStore interface {
	Get(worldID, chatID string) (*Chat, error)
	AppendMessage(worldID, chatID string, msg Message) error
}
