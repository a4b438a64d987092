package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/mention"
)

// slot is the arena cell of one agent. turn is a one-token semaphore held for
// the duration of a turn; mu guards profile for short critical sections.
type slot struct {
	turn    chan struct{}
	mu      sync.Mutex
	profile core.AgentProfile
}

// Manager keeps the roster of a world. Lookups are case-insensitive and all
// exported methods are safe for concurrent use. Counter mutation is reserved
// to the Governor.
type Manager struct {
	mu    sync.RWMutex
	slots map[string]*slot
	order []string
}

// NewManager creates a manager seeded with profiles.
func NewManager(profiles ...core.AgentProfile) (*Manager, error) {
	m := &Manager{slots: make(map[string]*slot)}
	for _, p := range profiles {
		if err := m.Add(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ValidateName checks that name can be addressed with a mention and does not
// collide with a reserved sender.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("agent name must not be empty")
	}
	if !core.IsAgentSender(name) {
		return fmt.Errorf("agent name %q is reserved", name)
	}
	if first, ok := mention.First("@" + name); !ok || first != name {
		return fmt.Errorf("agent name %q is not mentionable", name)
	}
	return nil
}

// Add registers a profile. The ID defaults to the name.
func (m *Manager) Add(p core.AgentProfile) error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = p.Name
	}

	key := strings.ToLower(p.Name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slots[key]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateAgent, p.Name)
	}

	m.slots[key] = &slot{turn: make(chan struct{}, 1), profile: p}
	m.order = append(m.order, p.Name)

	return nil
}

// Remove drops an agent from the roster.
func (m *Manager) Remove(name string) error {
	key := strings.ToLower(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slots[key]; !exists {
		return fmt.Errorf("%w: %s", core.ErrAgentNotFound, name)
	}

	delete(m.slots, key)

	for i, n := range m.order {
		if strings.EqualFold(n, name) {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	return nil
}

// Lookup returns a snapshot of the named profile.
func (m *Manager) Lookup(name string) (core.AgentProfile, bool) {
	s, ok := m.get(name)
	if !ok {
		return core.AgentProfile{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.profile, true
}

// Names returns the roster in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.order...)
}

// Snapshot returns copies of all profiles in registration order.
func (m *Manager) Snapshot() []core.AgentProfile {
	names := m.Names()
	out := make([]core.AgentProfile, 0, len(names))
	for _, n := range names {
		if p, ok := m.Lookup(n); ok {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the roster size.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.order)
}

// AcquireTurn blocks until the named agent's turn slot is free or ctx is
// done. The returned release func must be called exactly once.
func (m *Manager) AcquireTurn(ctx context.Context, name string) (func(), error) {
	s, ok := m.get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, name)
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once

	return func() { once.Do(func() { <-s.turn }) }, nil
}

// update applies fn to the named profile under its lock and returns the
// resulting snapshot.
func (m *Manager) update(name string, fn func(p *core.AgentProfile)) (core.AgentProfile, error) {
	s, ok := m.get(name)
	if !ok {
		return core.AgentProfile{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.profile)

	return s.profile, nil
}

func (m *Manager) get(name string) (*slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.slots[strings.ToLower(name)]

	return s, ok
}

var _ core.AgentDirectory = (*Manager)(nil)
