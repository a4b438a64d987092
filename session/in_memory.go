package session

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentworld/core"
)

type chatKey struct{ worldID, chatID string }

// InMemoryStore is a volatile ChatStore implementation storing chats in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Each returned chat is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu    sync.RWMutex
	chats map[chatKey]*core.Chat
}

// NewInMemoryStore constructs an empty in-memory chat store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chats: make(map[chatKey]*core.Chat)}
}

// Get returns a clone of an existing chat or an empty one.
func (s *InMemoryStore) Get(worldID, chatID string) (*core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if chat, ok := s.chats[chatKey{worldID, chatID}]; ok {
		return chat.Clone(), nil
	}

	return core.NewChat(worldID, chatID), nil
}

// AppendMessage adds msg to an existing or newly created chat.
func (s *InMemoryStore) AppendMessage(worldID, chatID string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chatKey{worldID, chatID}

	chat, ok := s.chats[key]
	if !ok {
		chat = core.NewChat(worldID, chatID)
		s.chats[key] = chat
	}

	chat.AddMessage(msg)

	return nil
}

// History returns the messages of a chat in dispatch order.
func (s *InMemoryStore) History(worldID, chatID string) []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if chat, ok := s.chats[chatKey{worldID, chatID}]; ok {
		return chat.GetMessages()
	}

	return []core.Message{}
}

// Chats lists the chat ids of a world, sorted.
func (s *InMemoryStore) Chats(worldID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for k := range s.chats {
		if k.worldID == worldID {
			ids = append(ids, k.chatID)
		}
	}
	sort.Strings(ids)

	return ids
}

var _ core.ChatStore = (*InMemoryStore)(nil)
