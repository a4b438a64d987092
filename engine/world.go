package engine

import (
	"github.com/hupe1980/agentworld/agent"
	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/memory"
)

// World is the runtime of one registered world: its roster, the governor
// owning the turn counters and the replicator writing agent memories.
type World struct {
	cfg        core.WorldConfig
	agents     *agent.Manager
	governor   *agent.Governor
	replicator *memory.Replicator
	store      core.MemoryStore
}

// Config returns the static world configuration.
func (w *World) Config() core.WorldConfig { return w.cfg }

// ID returns the world id.
func (w *World) ID() string { return w.cfg.ID }

// Agents returns snapshots of the roster in registration order.
func (w *World) Agents() []core.AgentProfile { return w.agents.Snapshot() }

// Roster returns the agent names in registration order.
func (w *World) Roster() []string { return w.agents.Names() }

// Memory returns the world's agent memory store.
func (w *World) Memory() core.MemoryStore { return w.store }

// ResolveChat resolves an empty chat id to the world's default chat.
func (w *World) ResolveChat(chatID string) string {
	if chatID != "" {
		return chatID
	}
	return w.cfg.ChatID
}

func (w *World) promptContext(p core.AgentProfile) agent.PromptContext {
	others := make([]string, 0, w.agents.Len())
	for _, n := range w.agents.Names() {
		if !core.SameName(n, p.Name) {
			others = append(others, n)
		}
	}

	return agent.PromptContext{
		Name:      p.Name,
		Agent:     p,
		Roster:    others,
		TurnLimit: w.governor.LimitFor(p),
		WorldID:   w.cfg.ID,
	}
}
