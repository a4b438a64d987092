package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/engine"
	"github.com/hupe1980/agentworld/logging"
	"github.com/hupe1980/agentworld/pubsub"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for streamed events.
	EventBufferSize int
	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// Runner streams the cascades of submitted messages. Public methods are safe
// for concurrent use. Concurrent runs on the same chat observe each other's
// events.
type Runner struct {
	engine *engine.Engine
	broker *pubsub.Broker

	eventBufferSize int
	logger          logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner. broker must be the publisher of eng.
func New(eng *engine.Engine, broker *pubsub.Broker, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		engine:          eng,
		broker:          broker,
		eventBufferSize: opts.EventBufferSize,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Run submits content to a chat and streams the events of the cascade. The
// event channel is closed once the cascade has settled; afterwards the error
// channel yields at most one error and is closed. Callers must drain events
// or cancel the run.
func (r *Runner) Run(
	ctx context.Context,
	worldID, chatID, content, sender string,
) (string, <-chan core.Event, <-chan error, error) {
	w, err := r.engine.World(worldID)
	if err != nil {
		return "", nil, nil, err
	}

	chatID = w.ResolveChat(chatID)
	runID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	sub, unsubscribe := r.broker.Subscribe(pubsub.ForChat(worldID, chatID))

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	forwarded := make(chan struct{})

	go func() {
		defer close(forwarded)
		defer close(eventsCh)

		for ev := range sub {
			select {
			case eventsCh <- ev:
			case <-ctx.Done():
			}
		}
	}()

	go func() {
		defer close(errorsCh)
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
		}()

		_, err := r.engine.ReceiveMessage(ctx, worldID, chatID, content, sender)

		unsubscribe()
		<-forwarded

		if err != nil {
			r.logger.Warn("run failed", "run_id", runID, "world_id", worldID, "chat_id", chatID, "error", err)
			errorsCh <- err
		}
	}()

	return runID, eventsCh, errorsCh, nil
}

// Send runs content to completion and returns the collected events.
func (r *Runner) Send(ctx context.Context, worldID, chatID, content, sender string) ([]core.Event, error) {
	_, events, errs, err := r.Run(ctx, worldID, chatID, content, sender)
	if err != nil {
		return nil, err
	}

	var out []core.Event
	for ev := range events {
		out = append(out, ev)
	}

	return out, <-errs
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// Chat runs an interactive session: every input line is sent as a human
// message and the published conversation is written to out. Lines starting
// with a slash are commands:
//
//	/view [agent...]  print the global view, or the view of the given agents
//	/agents           print the roster with turn counters
//	/quit             end the session
func (r *Runner) Chat(ctx context.Context, worldID, chatID string, in io.Reader, out io.Writer) error {
	w, err := r.engine.World(worldID)
	if err != nil {
		return err
	}

	chatID = w.ResolveChat(chatID)

	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, w, chatID, line, out)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		_, events, errs, err := r.Run(ctx, worldID, chatID, line, core.SenderHuman)
		if err != nil {
			return err
		}

		for ev := range events {
			// the human's own line is already on screen
			if ev.Message != nil && ev.Message.FromHuman() {
				continue
			}
			fmt.Fprintln(out, FormatEvent(ev))
		}

		if err := <-errs; err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "! %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *Runner) command(ctx context.Context, w *engine.World, chatID, line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/view":
		var (
			entries []core.MemoryEntry
			err     error
		)

		if len(fields) > 1 {
			entries, err = r.engine.FilteredView(ctx, w.ID(), chatID, fields[1:]...)
		} else {
			entries, err = r.engine.GlobalView(ctx, w.ID(), chatID)
		}

		if err != nil {
			return false, err
		}

		for _, e := range entries {
			fmt.Fprintln(out, FormatEntry(e))
		}

		return false, nil
	case "/agents":
		limit := w.Config().EffectiveTurnLimit()
		for _, p := range w.Agents() {
			l := limit
			if p.TurnLimit > 0 {
				l = p.TurnLimit
			}
			fmt.Fprintf(out, "%s\t%d/%d LLM calls\n", p.Name, p.LLMCallCount, l)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

// FormatEvent renders ev as a single display line.
func FormatEvent(ev core.Event) string {
	if ev.Type == core.EventError {
		return fmt.Sprintf("! %s: %s", ev.AgentName, ev.Error)
	}

	if ev.Message == nil {
		return fmt.Sprintf("[%s]", ev.Type)
	}

	return fmt.Sprintf("[%s] %s", ev.Message.Sender, ev.Message.Content)
}

// FormatEntry renders a view entry as a single display line.
func FormatEntry(e core.MemoryEntry) string {
	if e.Role == core.RoleAssistant || e.FromAgentID == "" {
		return fmt.Sprintf("[%s] %s", e.Author(), e.Content)
	}

	return fmt.Sprintf("[%s -> %s] %s", e.FromAgentID, e.OwnerAgentID, e.Content)
}
