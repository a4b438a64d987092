package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentworld/core"
)

// Call records one ChatCompletion invocation.
type Call struct {
	Agent   string
	Prompt  string
	History []core.MemoryEntry
}

// Step is one scripted model result.
type Step struct {
	Text string
	Err  error
	// Wait blocks the call until it is closed or the context is done.
	Wait <-chan struct{}
}

// ScriptedCompleter is a ChatCompleter returning scripted results per agent.
// Agents without remaining steps get the Fallback output (default: an empty
// string). It is safe for concurrent use.
type ScriptedCompleter struct {
	mu       sync.Mutex
	steps    map[string][]Step
	calls    []Call
	Fallback func(agent core.AgentProfile, history []core.MemoryEntry) (string, error)
}

// NewScriptedCompleter creates an empty script.
func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{steps: make(map[string][]Step)}
}

// Reply queues text outputs for agent (chainable).
func (s *ScriptedCompleter) Reply(agent string, texts ...string) *ScriptedCompleter {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range texts {
		s.steps[agent] = append(s.steps[agent], Step{Text: t})
	}
	return s
}

// Fail queues an error for agent (chainable).
func (s *ScriptedCompleter) Fail(agent string, err error) *ScriptedCompleter {
	return s.Then(agent, Step{Err: err})
}

// Then queues an arbitrary step for agent (chainable).
func (s *ScriptedCompleter) Then(agent string, step Step) *ScriptedCompleter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[agent] = append(s.steps[agent], step)
	return s
}

// ChatCompletion implements model.ChatCompleter.
func (s *ScriptedCompleter) ChatCompletion(ctx context.Context, agent core.AgentProfile, history []core.MemoryEntry) (string, error) {
	s.mu.Lock()
	hist := make([]core.MemoryEntry, len(history))
	copy(hist, history)
	s.calls = append(s.calls, Call{Agent: agent.Name, Prompt: agent.SystemPrompt, History: hist})

	queue := s.steps[agent.Name]
	var (
		step Step
		ok   bool
	)
	if len(queue) > 0 {
		step, ok = queue[0], true
		s.steps[agent.Name] = queue[1:]
	}
	fallback := s.Fallback
	s.mu.Unlock()

	if !ok {
		if fallback != nil {
			return fallback(agent, history)
		}
		return "", nil
	}

	if step.Wait != nil {
		select {
		case <-step.Wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return step.Text, step.Err
}

// Calls returns a copy of the recorded calls.
func (s *ScriptedCompleter) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor returns how many calls agent made.
func (s *ScriptedCompleter) CallsFor(agent string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Agent == agent {
			n++
		}
	}
	return n
}

// Remaining reports unconsumed steps, useful in failure messages.
func (s *ScriptedCompleter) Remaining() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%v", s.steps)
}
