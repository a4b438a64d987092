package artifact

import (
	"sort"
	"sync"
)

type chatKey struct {
	worldID string
	chatID  string
}

// InMemoryStore keeps transcripts in process. Transcripts are stored
// encoded, so callers never share entry slices with the store.
type InMemoryStore struct {
	mu    sync.RWMutex
	chats map[chatKey]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory transcript store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chats: make(map[chatKey]map[string][]byte)}
}

// Save stores (or overwrites) t under its id.
func (s *InMemoryStore) Save(t Transcript) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}

	key := chatKey{worldID: t.WorldID, chatID: t.ChatID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chats[key]; !exists {
		s.chats[key] = make(map[string][]byte)
	}
	s.chats[key][t.ID] = data

	return nil
}

// Get returns the stored transcript or ErrNotFound.
func (s *InMemoryStore) Get(worldID, chatID, id string) (Transcript, error) {
	s.mu.RLock()
	data, ok := s.chats[chatKey{worldID: worldID, chatID: chatID}][id]
	s.mu.RUnlock()

	if !ok {
		return Transcript{}, ErrNotFound
	}

	return Decode(data)
}

// List returns the sorted transcript ids of a chat.
func (s *InMemoryStore) List(worldID, chatID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.chats[chatKey{worldID: worldID, chatID: chatID}]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

// Delete removes the transcript if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(worldID, chatID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.chats[chatKey{worldID: worldID, chatID: chatID}]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[id]; !ok {
		return ErrNotFound
	}
	delete(m, id)

	return nil
}
