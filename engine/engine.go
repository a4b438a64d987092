package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentworld/addressing"
	"github.com/hupe1980/agentworld/agent"
	"github.com/hupe1980/agentworld/compose"
	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/logging"
	"github.com/hupe1980/agentworld/memory"
	"github.com/hupe1980/agentworld/metrics"
	"github.com/hupe1980/agentworld/model"
	"github.com/hupe1980/agentworld/session"
	"github.com/hupe1980/agentworld/view"
)

// DefaultLLMTimeout bounds a single model call.
const DefaultLLMTimeout = 60 * time.Second

// TimeoutErrorMessage is published as error event when a model call times out.
const TimeoutErrorMessage = "Request timed out"

// Options configures an Engine instance using the functional options pattern.
// Every dependency has an in-memory default so an engine works out of the box.
type Options struct {
	// ChatStore keeps the canonical message log per chat.
	// Defaults to session.InMemoryStore.
	ChatStore core.ChatStore

	// MemoryStoreFactory creates the agent memory store of a world on
	// registration. Defaults to one memory.InMemoryStore per world.
	MemoryStoreFactory func(worldID string) (core.MemoryStore, error)

	// Publisher receives every outbound event. Defaults to core.NoOpPublisher.
	Publisher core.Publisher

	// LLM produces agent replies. Defaults to a model.Router serving the
	// mock provider.
	LLM model.ChatCompleter

	// LLMTimeout bounds each model call. Defaults to DefaultLLMTimeout.
	LLMTimeout time.Duration

	// Callbacks are invoked at the hook points of a turn. Optional.
	Callbacks *CallbackManager

	// Metrics records engine counters. Optional.
	Metrics *metrics.Metrics

	// Now supplies the governor's timestamps.
	Now func() time.Time

	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// Engine hosts worlds and runs the message pipeline for all of them. It is
// safe for concurrent use.
type Engine struct {
	chats      core.ChatStore
	newMemory  func(worldID string) (core.MemoryStore, error)
	publisher  core.Publisher
	llm        model.ChatCompleter
	llmTimeout time.Duration
	callbacks  *CallbackManager
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     logging.Logger

	mu     sync.RWMutex
	worlds map[string]*World

	activeMu sync.Mutex
	active   map[chatKey]map[uint64]context.CancelFunc
	nextID   uint64
}

type chatKey struct {
	worldID string
	chatID  string
}

// New creates an engine with the provided options applied over the defaults.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		ChatStore: session.NewInMemoryStore(),
		MemoryStoreFactory: func(string) (core.MemoryStore, error) {
			return memory.NewInMemoryStore(), nil
		},
		Publisher:  core.NoOpPublisher{},
		LLMTimeout: DefaultLLMTimeout,
		Now:        time.Now,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.LLM == nil {
		opts.LLM = model.NewRouter(func(o *model.RouterOptions) { o.Logger = opts.Logger })
	}

	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = DefaultLLMTimeout
	}

	return &Engine{
		chats:      opts.ChatStore,
		newMemory:  opts.MemoryStoreFactory,
		publisher:  opts.Publisher,
		llm:        opts.LLM,
		llmTimeout: opts.LLMTimeout,
		callbacks:  opts.Callbacks,
		metrics:    opts.Metrics,
		now:        opts.Now,
		logger:     opts.Logger,
		worlds:     make(map[string]*World),
		active:     make(map[chatKey]map[uint64]context.CancelFunc),
	}
}

// RegisterWorld creates the runtime of cfg with the given roster.
func (e *Engine) RegisterWorld(cfg core.WorldConfig, profiles ...core.AgentProfile) (*World, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, errors.New("world id is required")
	}

	agents, err := agent.NewManager(profiles...)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", cfg.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.worlds[cfg.ID]; exists {
		return nil, fmt.Errorf("world %s already registered", cfg.ID)
	}

	store, err := e.newMemory(cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("world %s: create memory store: %w", cfg.ID, err)
	}

	w := &World{
		cfg:    cfg,
		agents: agents,
		governor: agent.NewGovernor(agents, cfg.EffectiveTurnLimit(), func(o *agent.GovernorOptions) {
			o.Now = e.now
			o.Logger = e.logger
		}),
		replicator: memory.NewReplicator(store, agents, func(o *memory.ReplicatorOptions) {
			o.Logger = e.logger
		}),
		store: store,
	}

	e.worlds[cfg.ID] = w

	e.logger.Info("world registered", "world_id", cfg.ID, "agents", agents.Names(), "turn_limit", cfg.EffectiveTurnLimit())

	return w, nil
}

// World returns the runtime of a registered world.
func (e *Engine) World(worldID string) (*World, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	w, ok := e.worlds[worldID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrWorldNotFound, worldID)
	}

	return w, nil
}

// Worlds returns the ids of all registered worlds.
func (e *Engine) Worlds() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.worlds))
	for id := range e.worlds {
		ids = append(ids, id)
	}

	return ids
}

// Agent returns a snapshot of the named agent including its counters.
func (e *Engine) Agent(worldID, name string) (core.AgentProfile, error) {
	w, err := e.World(worldID)
	if err != nil {
		return core.AgentProfile{}, err
	}

	p, ok := w.agents.Lookup(name)
	if !ok {
		return core.AgentProfile{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, name)
	}

	return p, nil
}

// ReceiveMessage injects a message into a chat and runs the resulting
// cascade to completion. An empty chatID selects the world's default chat,
// an empty sender is treated as a system broadcast. The returned message is
// the recorded inbound message.
func (e *Engine) ReceiveMessage(ctx context.Context, worldID, chatID, content, sender string) (core.Message, error) {
	w, err := e.World(worldID)
	if err != nil {
		return core.Message{}, err
	}

	if strings.TrimSpace(sender) == "" {
		sender = core.SenderSystem
	}

	if core.IsAgentSender(sender) {
		if _, ok := w.agents.Lookup(sender); !ok {
			return core.Message{}, fmt.Errorf("%w: unknown sender %q", core.ErrInvalidMessage, sender)
		}
	}

	msg := core.NewMessage(sender, content).WithChat(w.ResolveChat(chatID))

	e.metrics.ObserveReceived(worldID, metrics.SenderKind(msg.FromHuman(), msg.FromSystem()))

	runCtx, done := e.track(ctx, worldID, msg.ChatID)
	defer done()

	if err := e.dispatch(runCtx, w, msg, core.EventMessage); err != nil {
		return msg, err
	}

	return msg, ctx.Err()
}

// Stop cancels every in-flight turn of the chat. Results of cancelled model
// calls are discarded. It returns the number of cancelled cascades.
func (e *Engine) Stop(worldID, chatID string) (int, error) {
	w, err := e.World(worldID)
	if err != nil {
		return 0, err
	}

	key := chatKey{worldID: worldID, chatID: w.ResolveChat(chatID)}

	e.activeMu.Lock()
	cancels := e.active[key]
	delete(e.active, key)
	e.activeMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	if len(cancels) > 0 {
		e.logger.Info("chat stopped", "world_id", worldID, "chat_id", key.chatID, "cascades", len(cancels))
	}

	return len(cancels), nil
}

// History returns the chat log in dispatch order.
func (e *Engine) History(worldID, chatID string) ([]core.Message, error) {
	w, err := e.World(worldID)
	if err != nil {
		return nil, err
	}

	chat, err := e.chats.Get(worldID, w.ResolveChat(chatID))
	if err != nil {
		return nil, err
	}

	return chat.GetMessages(), nil
}

// GlobalView returns the deduplicated conversation of a chat across all
// agent memories.
func (e *Engine) GlobalView(ctx context.Context, worldID, chatID string) ([]core.MemoryEntry, error) {
	_, entries, err := e.chatEntries(ctx, worldID, chatID)
	if err != nil {
		return nil, err
	}

	return view.Global(entries), nil
}

// FilteredView returns the conversation as seen by the selected agents.
func (e *Engine) FilteredView(ctx context.Context, worldID, chatID string, agentIDs ...string) ([]core.MemoryEntry, error) {
	_, entries, err := e.chatEntries(ctx, worldID, chatID)
	if err != nil {
		return nil, err
	}

	return view.Filtered(entries, agentIDs...), nil
}

func (e *Engine) chatEntries(ctx context.Context, worldID, chatID string) (*World, []core.MemoryEntry, error) {
	w, err := e.World(worldID)
	if err != nil {
		return nil, nil, err
	}

	var all []core.MemoryEntry

	for _, name := range w.agents.Names() {
		entries, err := w.store.GetAgentConversationHistory(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("load memory of %s: %w", name, err)
		}

		all = append(all, entries...)
	}

	return w, core.FilterChat(all, w.ResolveChat(chatID)), nil
}

// track derives a cancellable context registered for Stop.
func (e *Engine) track(ctx context.Context, worldID, chatID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	key := chatKey{worldID: worldID, chatID: chatID}

	e.activeMu.Lock()
	e.nextID++
	id := e.nextID
	if e.active[key] == nil {
		e.active[key] = make(map[uint64]context.CancelFunc)
	}
	e.active[key][id] = cancel
	e.activeMu.Unlock()

	return runCtx, func() {
		e.activeMu.Lock()
		if m, ok := e.active[key]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(e.active, key)
			}
		}
		e.activeMu.Unlock()
		cancel()
	}
}

// dispatch records msg, replicates it into every roster memory and, unless
// the message is a terminal control message, evaluates every agent
// concurrently. It returns after the whole cascade has settled.
func (e *Engine) dispatch(ctx context.Context, w *World, msg core.Message, eventType core.EventType) error {
	if err := e.chats.AppendMessage(w.cfg.ID, msg.ChatID, msg); err != nil {
		return fmt.Errorf("append to chat %s: %w", msg.ChatID, err)
	}

	e.publish(ctx, core.NewMessageEvent(eventType, w.cfg.ID, msg))

	roster := w.agents.Names()

	n, err := w.replicator.RecordIncoming(context.WithoutCancel(ctx), msg, roster)
	e.metrics.ObserveReplicated(w.cfg.ID, n)

	if err != nil {
		return fmt.Errorf("replicate message %s: %w", msg.ID, err)
	}

	e.runCallbacks(ctx, CallbackOnDispatch, &CallbackContext{
		WorldID: w.cfg.ID,
		ChatID:  msg.ChatID,
		AgentID: msg.Sender,
		Message: &msg,
	})

	if eventType == core.EventTurnLimit || eventType == core.EventPassControl {
		return nil
	}

	if ctx.Err() != nil {
		return nil
	}

	var g errgroup.Group

	for _, name := range roster {
		g.Go(func() error {
			return e.runTurn(ctx, w, name, msg)
		})
	}

	return g.Wait()
}

// runTurn evaluates one agent against trigger. The agent's turn slot is held
// from the counter reset until its reply has been charged, never while the
// reply is dispatched.
func (e *Engine) runTurn(ctx context.Context, w *World, name string, trigger core.Message) error {
	release, err := w.agents.AcquireTurn(ctx, name)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, core.ErrAgentNotFound) {
			return nil
		}
		return err
	}

	released := false
	defer func() {
		if !released {
			release()
		}
	}()

	if _, err := w.governor.OnIncomingMessage(name, trigger); err != nil {
		return skipRemoved(err)
	}

	p, ok := w.agents.Lookup(name)
	if !ok {
		return nil
	}

	decision := addressing.Decide(p, trigger)
	if !decision.Respond {
		e.logger.Debug("agent skipped", "world_id", w.cfg.ID, "agent", name, "message_id", trigger.ID, "reason", string(decision.Reason))
		return nil
	}

	within, err := w.governor.IsWithinLimit(name)
	if err != nil {
		return skipRemoved(err)
	}

	if !within {
		redirect := w.governor.LimitMessage(p, trigger)

		e.metrics.ObserveTurnLimit(w.cfg.ID, name)
		e.logTurnLimit(w, trigger.ChatID, name, w.governor.LimitFor(p))
		e.runCallbacks(ctx, CallbackOnTurnLimit, &CallbackContext{
			WorldID: w.cfg.ID,
			ChatID:  trigger.ChatID,
			AgentID: name,
			Message: &redirect,
		})

		release()
		released = true

		return e.dispatch(ctx, w, redirect, core.EventTurnLimit)
	}

	history, err := w.store.GetAgentConversationHistory(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("agent %s: load memory: %w", name, err)
	}

	history = core.FilterChat(history, trigger.ChatID)

	prompt, err := agent.InstructionFor(p).Resolve(w.promptContext(p))
	if err != nil {
		return fmt.Errorf("agent %s: %w", name, err)
	}

	p.SystemPrompt = prompt

	cbCtx := &CallbackContext{
		WorldID:  w.cfg.ID,
		ChatID:   trigger.ChatID,
		AgentID:  name,
		Message:  &trigger,
		Metadata: map[string]any{"history": len(history)},
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeModel, cbCtx); err != nil {
		return fmt.Errorf("agent %s: before model: %w", name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	start := time.Now()
	raw, err := e.llm.ChatCompletion(callCtx, p, history)
	elapsed := time.Since(start)
	cancel()

	if ctx.Err() != nil {
		e.metrics.ObserveLLMCall(w.cfg.ID, name, metrics.OutcomeCancelled, elapsed)
		e.logger.Info("model result discarded", "world_id", w.cfg.ID, "chat_id", trigger.ChatID, "agent", name)
		return nil
	}

	if err != nil {
		e.logLLMCall(w, trigger.ChatID, p, elapsed, err)

		cbCtx.Err = err
		e.runCallbacks(ctx, CallbackOnError, cbCtx)

		if model.IsTimeout(err) {
			e.metrics.ObserveLLMCall(w.cfg.ID, name, metrics.OutcomeTimeout, elapsed)
			e.publish(ctx, core.NewErrorEvent(w.cfg.ID, trigger.ChatID, name, TimeoutErrorMessage))
			return nil
		}

		e.metrics.ObserveLLMCall(w.cfg.ID, name, metrics.OutcomeError, elapsed)

		return fmt.Errorf("agent %s: %w", name, err)
	}

	e.metrics.ObserveLLMCall(w.cfg.ID, name, metrics.OutcomeSuccess, elapsed)
	e.logLLMCall(w, trigger.ChatID, p, elapsed, nil)

	reply := compose.ComposeReply(p, raw, trigger)

	if _, err := w.governor.OnSuccessfulLLMCall(name); err != nil {
		return skipRemoved(err)
	}

	release()
	released = true

	cbCtx.Metadata["reply"] = reply.Kind.String()
	e.runCallbacks(ctx, CallbackAfterModel, cbCtx)

	switch reply.Kind {
	case compose.KindMessage:
		return e.dispatch(ctx, w, reply.Message, core.EventMessage)
	case compose.KindPassControl:
		e.metrics.ObservePass(w.cfg.ID, name)
		e.logger.Info("agent passed control", "world_id", w.cfg.ID, "chat_id", trigger.ChatID, "agent", name)
		return e.dispatch(ctx, w, reply.Message, core.EventPassControl)
	default:
		e.logger.Debug("empty reply dropped", "world_id", w.cfg.ID, "agent", name)
		return nil
	}
}

func (e *Engine) publish(ctx context.Context, ev core.Event) {
	if err := e.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		e.logger.Warn("publish failed", "world_id", ev.WorldID, "event", string(ev.Type), "error", err)
		return
	}

	e.metrics.ObservePublished(ev.WorldID, string(ev.Type))
}

// runCallbacks executes non-vetoing hooks; failures are logged only.
func (e *Engine) runCallbacks(ctx context.Context, t CallbackType, cbCtx *CallbackContext) {
	if err := e.callbacks.ExecuteCallbacks(ctx, t, cbCtx); err != nil {
		e.logger.Warn("callback failed", "type", string(t), "agent", cbCtx.AgentID, "error", err)
	}
}

func (e *Engine) logLLMCall(w *World, chatID string, p core.AgentProfile, elapsed time.Duration, err error) {
	if wl, ok := e.logger.(*logging.WorldLogger); ok {
		wl.WithChat(w.cfg.ID, chatID).LogLLMCall(p.Name, p.Provider.Model, elapsed, err == nil, err)
		return
	}

	if err != nil {
		e.logger.Error("llm call failed", "world_id", w.cfg.ID, "agent", p.Name, "duration", elapsed, "error", err)
		return
	}

	e.logger.Debug("llm call", "world_id", w.cfg.ID, "agent", p.Name, "duration", elapsed)
}

func (e *Engine) logTurnLimit(w *World, chatID, name string, limit int) {
	if wl, ok := e.logger.(*logging.WorldLogger); ok {
		wl.WithChat(w.cfg.ID, chatID).LogTurnLimit(name, limit)
		return
	}

	e.logger.Info("turn limit reached", "world_id", w.cfg.ID, "agent", name, "limit", limit)
}

// skipRemoved turns errors about agents removed mid-cascade into a no-op.
func skipRemoved(err error) error {
	if errors.Is(err, core.ErrAgentNotFound) {
		return nil
	}
	return err
}
