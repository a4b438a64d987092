// Package agentworld provides a high-level façade over the chat world engine
// and its services (chat logs, agent memory, model routing, event streaming,
// logging and metrics). Most applications interact with this package by:
//  1. Creating an AgentWorld via New() or NewFromConfig()
//  2. Registering one or more worlds with their agent rosters
//  3. Sending messages synchronously (ReceiveMessage, InvokeSync) or
//     streaming the resulting cascade (Invoke)
//
// All defaults are in-memory and safe for local development and testing;
// deployments typically select the sqlite or redis memory backend and real
// model providers through the configuration file.
package agentworld

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentworld/artifact"
	"github.com/hupe1980/agentworld/config"
	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/engine"
	"github.com/hupe1980/agentworld/logging"
	"github.com/hupe1980/agentworld/memory"
	redisstore "github.com/hupe1980/agentworld/memory/redis"
	sqlitestore "github.com/hupe1980/agentworld/memory/sqlite"
	"github.com/hupe1980/agentworld/metrics"
	"github.com/hupe1980/agentworld/model"
	"github.com/hupe1980/agentworld/model/anthropic"
	"github.com/hupe1980/agentworld/model/openai"
	"github.com/hupe1980/agentworld/pubsub"
	"github.com/hupe1980/agentworld/runner"
	"github.com/hupe1980/agentworld/session"
)

// Options configures the AgentWorld instance.
type Options struct {
	// Stores (defaults to in-memory implementations if not provided)
	ChatStore          core.ChatStore
	MemoryStoreFactory func(worldID string) (core.MemoryStore, error)

	// Transcripts keeps exported views. Defaults to artifact.InMemoryStore.
	Transcripts artifact.Store

	// LLM defaults to a model.Router with the mock, openai and anthropic
	// providers registered.
	LLM        model.ChatCompleter
	LLMTimeout time.Duration
	Stream     bool

	// Registerer enables Prometheus metrics when set.
	Registerer prometheus.Registerer

	Callbacks *engine.CallbackManager

	// EventBufferSize sets subscriber and stream buffering.
	EventBufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentWorld is the high-level façade aggregating the engine, the event
// broker and the runner.
type AgentWorld struct {
	engine      *engine.Engine
	broker      *pubsub.Broker
	runner      *runner.Runner
	transcripts artifact.Store
	logger      logging.Logger
	closers     []func() error
}

// New creates a new AgentWorld instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentWorld {
	opts := Options{
		ChatStore: session.NewInMemoryStore(),
		MemoryStoreFactory: func(string) (core.MemoryStore, error) {
			return memory.NewInMemoryStore(), nil
		},
		Transcripts:     artifact.NewInMemoryStore(),
		LLMTimeout:      engine.DefaultLLMTimeout,
		EventBufferSize: 256,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.LLM == nil {
		opts.LLM = NewRouter(opts.Stream, opts.Logger)
	}

	var m *metrics.Metrics
	if opts.Registerer != nil {
		m = metrics.New(opts.Registerer)
	}

	broker := pubsub.NewBroker(func(o *pubsub.Options) {
		o.BufferSize = opts.EventBufferSize
		o.Logger = opts.Logger
	})

	eng := engine.New(func(o *engine.Options) {
		o.ChatStore = opts.ChatStore
		o.MemoryStoreFactory = opts.MemoryStoreFactory
		o.Publisher = broker
		o.LLM = opts.LLM
		o.LLMTimeout = opts.LLMTimeout
		o.Callbacks = opts.Callbacks
		o.Metrics = m
		o.Logger = opts.Logger
	})

	return &AgentWorld{
		engine: eng,
		broker: broker,
		runner: runner.New(eng, broker, func(o *runner.Options) {
			o.EventBufferSize = opts.EventBufferSize
			o.Logger = opts.Logger
		}),
		transcripts: opts.Transcripts,
		logger:      opts.Logger,
	}
}

// NewFromConfig builds an AgentWorld from a validated configuration and
// registers the configured world. The returned instance owns the memory
// backend connection; call Close to release it.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*AgentWorld, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, false).
		WithComponent("agentworld")

	factory, closer, err := memoryBackend(ctx, cfg.Memory)
	if err != nil {
		return nil, err
	}

	aw := New(append([]func(o *Options){func(o *Options) {
		o.MemoryStoreFactory = factory
		o.LLMTimeout = cfg.LLMTimeout()
		o.Stream = cfg.LLM.Stream
		o.Logger = logger
	}}, optFns...)...)

	if closer != nil {
		aw.closers = append(aw.closers, closer)
	}

	if err := aw.RegisterWorld(cfg.WorldConfig(), cfg.AgentProfiles()...); err != nil {
		_ = aw.Close()
		return nil, err
	}

	return aw, nil
}

// NewRouter returns a model router with every supported provider registered.
func NewRouter(stream bool, logger logging.Logger) *model.Router {
	r := model.NewRouter(func(o *model.RouterOptions) {
		o.Stream = stream
		o.Logger = logger
	})

	r.Register(core.ProviderOpenAI, openai.Factory)
	r.Register(core.ProviderAnthropic, anthropic.Factory)

	return r
}

func memoryBackend(ctx context.Context, cfg config.MemoryConfig) (func(string) (core.MemoryStore, error), func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite memory: %w", err)
		}

		return func(worldID string) (core.MemoryStore, error) {
			return store.ForWorld(worldID), nil
		}, store.Close, nil
	case config.BackendRedis:
		store, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis memory: %w", err)
		}

		return func(worldID string) (core.MemoryStore, error) {
			return store.ForWorld(worldID), nil
		}, store.Close, nil
	default:
		return func(string) (core.MemoryStore, error) {
			return memory.NewInMemoryStore(), nil
		}, nil, nil
	}
}

// RegisterWorld adds a world with its roster.
func (a *AgentWorld) RegisterWorld(cfg core.WorldConfig, profiles ...core.AgentProfile) error {
	_, err := a.engine.RegisterWorld(cfg, profiles...)
	return err
}

// ReceiveMessage injects a message and runs its cascade to completion.
func (a *AgentWorld) ReceiveMessage(ctx context.Context, worldID, chatID, content, sender string) (core.Message, error) {
	return a.engine.ReceiveMessage(ctx, worldID, chatID, content, sender)
}

// Invoke starts an asynchronous run returning event & error channels.
func (a *AgentWorld) Invoke(
	ctx context.Context,
	worldID, chatID, content, sender string,
) (string, <-chan core.Event, <-chan error, error) {
	return a.runner.Run(ctx, worldID, chatID, content, sender)
}

// InvokeSync drains an asynchronous run and returns the collected events.
func (a *AgentWorld) InvokeSync(ctx context.Context, worldID, chatID, content, sender string) ([]core.Event, error) {
	return a.runner.Send(ctx, worldID, chatID, content, sender)
}

// Stop cancels the in-flight turns of a chat.
func (a *AgentWorld) Stop(worldID, chatID string) error {
	_, err := a.engine.Stop(worldID, chatID)
	return err
}

// GlobalView returns the deduplicated conversation of a chat.
func (a *AgentWorld) GlobalView(ctx context.Context, worldID, chatID string) ([]core.MemoryEntry, error) {
	return a.engine.GlobalView(ctx, worldID, chatID)
}

// FilteredView returns the conversation as seen by the selected agents.
func (a *AgentWorld) FilteredView(ctx context.Context, worldID, chatID string, agentIDs ...string) ([]core.MemoryEntry, error) {
	return a.engine.FilteredView(ctx, worldID, chatID, agentIDs...)
}

// Export snapshots the global view of a chat, or the view of agentIDs, and
// saves it to the transcript store.
func (a *AgentWorld) Export(ctx context.Context, worldID, chatID string, agentIDs ...string) (artifact.Transcript, error) {
	w, err := a.engine.World(worldID)
	if err != nil {
		return artifact.Transcript{}, err
	}

	chatID = w.ResolveChat(chatID)

	var entries []core.MemoryEntry
	if len(agentIDs) > 0 {
		entries, err = a.engine.FilteredView(ctx, worldID, chatID, agentIDs...)
	} else {
		entries, err = a.engine.GlobalView(ctx, worldID, chatID)
	}

	if err != nil {
		return artifact.Transcript{}, err
	}

	t := artifact.NewTranscript(worldID, chatID, entries, agentIDs...)
	if err := a.transcripts.Save(t); err != nil {
		return artifact.Transcript{}, fmt.Errorf("save transcript: %w", err)
	}

	a.logger.Info("transcript exported", "world_id", worldID, "chat_id", chatID, "transcript_id", t.ID, "entries", len(entries))

	return t, nil
}

// Transcripts exposes the transcript store.
func (a *AgentWorld) Transcripts() artifact.Store { return a.transcripts }

// Subscribe streams the events of one chat (all chats of the world when
// chatID is empty) until the returned cancel func is called.
func (a *AgentWorld) Subscribe(worldID, chatID string) (<-chan core.Event, func()) {
	return a.broker.Subscribe(pubsub.ForChat(worldID, chatID))
}

// Engine exposes the underlying engine.
func (a *AgentWorld) Engine() *engine.Engine { return a.engine }

// Runner exposes the underlying runner.
func (a *AgentWorld) Runner() *runner.Runner { return a.runner }

// Close closes the broker and the memory backend.
func (a *AgentWorld) Close() error {
	a.broker.Close()

	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
