package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/logging"
)

// GovernorOptions configures a Governor.
type GovernorOptions struct {
	// Now supplies timestamps for LastLLMCallAt.
	Now func() time.Time
	// Logger receives reset / limit diagnostics.
	Logger logging.Logger
}

// Governor enforces per-agent LLM call budgets. It is the only component
// that mutates LLMCallCount and LastLLMCallAt.
type Governor struct {
	agents     *Manager
	worldLimit int
	now        func() time.Time
	logger     logging.Logger
}

// NewGovernor creates a governor over agents using worldLimit for agents
// without an override. A non-positive worldLimit selects core.DefaultTurnLimit.
func NewGovernor(agents *Manager, worldLimit int, optFns ...func(o *GovernorOptions)) *Governor {
	opts := GovernorOptions{
		Now:    time.Now,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if worldLimit <= 0 {
		worldLimit = core.DefaultTurnLimit
	}

	return &Governor{agents: agents, worldLimit: worldLimit, now: opts.Now, logger: opts.Logger}
}

// OnIncomingMessage resets the agent's counter when msg comes from the
// human. It reports whether a reset happened.
func (g *Governor) OnIncomingMessage(name string, msg core.Message) (bool, error) {
	if !msg.FromHuman() {
		return false, nil
	}

	prev := 0

	if _, err := g.agents.update(name, func(p *core.AgentProfile) {
		prev = p.LLMCallCount
		p.LLMCallCount = 0
	}); err != nil {
		return false, err
	}

	if prev > 0 {
		g.logger.Debug("turn counter reset by human input", "agent", name, "previous", prev)
	}

	return true, nil
}

// LimitFor returns the effective turn limit of p.
func (g *Governor) LimitFor(p core.AgentProfile) int {
	if p.TurnLimit > 0 {
		return p.TurnLimit
	}
	return g.worldLimit
}

// TurnLimit returns the effective turn limit of the named agent.
func (g *Governor) TurnLimit(name string) (int, error) {
	p, ok := g.agents.Lookup(name)
	if !ok {
		return 0, notFound(name)
	}
	return g.LimitFor(p), nil
}

// IsWithinLimit reports whether the agent may still call its model.
func (g *Governor) IsWithinLimit(name string) (bool, error) {
	p, ok := g.agents.Lookup(name)
	if !ok {
		return false, notFound(name)
	}
	return p.LLMCallCount < g.LimitFor(p), nil
}

// Remaining returns how many calls are left before hitting the limit.
func (g *Governor) Remaining(name string) (int, error) {
	p, ok := g.agents.Lookup(name)
	if !ok {
		return 0, notFound(name)
	}

	left := g.LimitFor(p) - p.LLMCallCount
	if left < 0 {
		return 0, nil
	}

	return left, nil
}

// OnSuccessfulLLMCall charges one completed call to the agent and returns the
// new count. It must never be called for failed or timed out calls.
func (g *Governor) OnSuccessfulLLMCall(name string) (int, error) {
	p, err := g.agents.update(name, func(p *core.AgentProfile) {
		p.LLMCallCount++
		p.LastLLMCallAt = g.now()
	})
	if err != nil {
		return 0, err
	}
	return p.LLMCallCount, nil
}

// LimitMessage builds the redirect an agent emits instead of calling its
// model once the budget is exhausted.
func (g *Governor) LimitMessage(p core.AgentProfile, trigger core.Message) core.Message {
	limit := g.LimitFor(p)
	g.logger.Debug("turn-limit redirect built", "agent", p.Name, "limit", limit, "trigger", trigger.ID)
	return core.NewReply(p.Name, core.TurnLimitContent(limit), trigger)
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", core.ErrAgentNotFound, name)
}
