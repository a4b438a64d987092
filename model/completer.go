package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/logging"
)

// ErrTimeout is returned (or wrapped) by completers whose request timed out.
var ErrTimeout = errors.New("llm request timeout")

// IsTimeout reports whether err is a timeout: ErrTimeout, an expired deadline
// or any error whose message mentions "timeout".
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// ChatCompleter produces an agent's next utterance from its memory. The
// agent's SystemPrompt is already rendered when ChatCompletion is called.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, agent core.AgentProfile, history []core.MemoryEntry) (string, error)
}

// CompleterFunc adapts a function to the ChatCompleter interface.
type CompleterFunc func(ctx context.Context, agent core.AgentProfile, history []core.MemoryEntry) (string, error)

// ChatCompletion implements ChatCompleter.
func (f CompleterFunc) ChatCompletion(ctx context.Context, agent core.AgentProfile, history []core.MemoryEntry) (string, error) {
	return f(ctx, agent, history)
}

// FormatEntry renders an entry as transcript text. Messages from other agents
// and the system are tagged with their author so the owner can tell speakers
// apart; the owner's own and the human's messages are left as is.
func FormatEntry(e core.MemoryEntry) string {
	switch {
	case e.Role == core.RoleAssistant:
		return e.Content
	case e.FromAgentID != "":
		return fmt.Sprintf("[from %s] %s", e.FromAgentID, e.Content)
	case core.IsSystem(e.Sender):
		return fmt.Sprintf("[from %s] %s", core.SenderSystem, e.Content)
	default:
		return e.Content
	}
}

// BuildRequest converts the memory of an agent into a provider request.
func BuildRequest(agent core.AgentProfile, history []core.MemoryEntry) Request {
	turns := make([]Turn, 0, len(history))
	for _, e := range history {
		role := RoleUser
		if e.Role == core.RoleAssistant {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Content: FormatEntry(e)})
	}
	return Request{Instructions: agent.SystemPrompt, Turns: turns}
}

// Factory builds a Model for a provider configuration.
type Factory func(cfg core.ProviderConfig) (Model, error)

// RouterOptions configures a Router.
type RouterOptions struct {
	// Stream requests streaming generation from providers that support it.
	Stream bool
	// Logger receives model construction diagnostics.
	Logger logging.Logger
}

// Router implements ChatCompleter by dispatching on the agent's provider
// tag. Models are built lazily through registered factories and cached per
// provider configuration.
type Router struct {
	mu        sync.Mutex
	factories map[core.Provider]Factory
	models    map[core.ProviderConfig]Model
	opts      RouterOptions
}

// NewRouter creates a router with the mock provider registered.
func NewRouter(optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Router{
		factories: make(map[core.Provider]Factory),
		models:    make(map[core.ProviderConfig]Model),
		opts:      opts,
	}

	r.Register(core.ProviderMock, func(cfg core.ProviderConfig) (Model, error) {
		name := cfg.Model
		if name == "" {
			name = "mock"
		}
		return NewMockModel(name), nil
	})

	return r
}

// Register installs the factory for provider p, replacing any previous one.
func (r *Router) Register(p core.Provider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[p] = f
	for cfg := range r.models {
		if cfg.Provider == p {
			delete(r.models, cfg)
		}
	}
}

// Use pins a prebuilt model to a provider configuration.
func (r *Router) Use(cfg core.ProviderConfig, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models[cfg] = m
}

// ModelFor returns the model serving cfg, building it on first use.
func (r *Router) ModelFor(cfg core.ProviderConfig) (Model, error) {
	if cfg.Provider == "" {
		cfg.Provider = core.ProviderMock
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models[cfg]; ok {
		return m, nil
	}

	f, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("no model factory registered for provider %q", cfg.Provider)
	}

	m, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s model: %w", cfg.Provider, err)
	}

	r.opts.Logger.Debug("model created", "provider", string(cfg.Provider), "model", m.Info().Name)
	r.models[cfg] = m

	return m, nil
}

// ChatCompletion implements ChatCompleter.
func (r *Router) ChatCompletion(ctx context.Context, agent core.AgentProfile, history []core.MemoryEntry) (string, error) {
	m, err := r.ModelFor(agent.Provider)
	if err != nil {
		return "", err
	}

	req := BuildRequest(agent, history)
	req.Stream = r.opts.Stream

	respCh, errCh := m.Generate(ctx, req)

	return Collect(ctx, respCh, errCh)
}

var _ ChatCompleter = (*Router)(nil)
