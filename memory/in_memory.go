package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentworld/core"
)

// InMemoryStore is a process-local MemoryStore. Each agent owns an
// append-only slice of entries; appending an entry whose (MessageID, Owner)
// key is already present is a no-op.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]core.MemoryEntry // agentID -> history
	keys    map[core.EntryKey]struct{}
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]core.MemoryEntry),
		keys:    make(map[core.EntryKey]struct{}),
	}
}

// AppendToAgentMemory appends entry to the memory of agentID. The owner of
// the stored entry is always agentID.
func (m *InMemoryStore) AppendToAgentMemory(_ context.Context, agentID string, entry core.MemoryEntry) error {
	entry.OwnerAgentID = agentID

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.keys[entry.Key()]; dup {
		return nil
	}

	m.keys[entry.Key()] = struct{}{}
	m.entries[agentID] = append(m.entries[agentID], entry)

	return nil
}

// GetAgentConversationHistory returns a copy of the memory of agentID in
// append order. Unknown agents have an empty history.
func (m *InMemoryStore) GetAgentConversationHistory(_ context.Context, agentID string) ([]core.MemoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.entries[agentID]
	out := make([]core.MemoryEntry, len(history))
	copy(out, history)

	return out, nil
}

// Owners lists the agents that have at least one entry, sorted by name.
func (m *InMemoryStore) Owners() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.entries))
	for owner := range m.entries {
		out = append(out, owner)
	}
	sort.Strings(out)

	return out
}

// Search performs a case-insensitive substring match over the memory of
// agentID and returns up to limit entries in append order. A non-positive
// limit returns every match.
func (m *InMemoryStore) Search(agentID, query string, limit int) []core.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	results := make([]core.MemoryEntry, 0)

	for _, e := range m.entries[agentID] {
		if limit > 0 && len(results) >= limit {
			break
		}
		if q == "" || strings.Contains(strings.ToLower(e.Content), q) {
			results = append(results, e)
		}
	}

	return results
}

var _ core.MemoryStore = (*InMemoryStore)(nil)
