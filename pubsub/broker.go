// Package pubsub provides an in-process event broker implementing
// core.Publisher. Transports subscribe to the broker and own their framing.
package pubsub

import (
	"context"
	"sync"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/logging"
)

// Filter selects the events a subscriber receives.
type Filter func(ev core.Event) bool

// ForChat returns a filter accepting events of one world chat. An empty
// chatID accepts every chat of the world.
func ForChat(worldID, chatID string) Filter {
	return func(ev core.Event) bool {
		return ev.WorldID == worldID && (chatID == "" || ev.ChatID == chatID)
	}
}

// Options configures a Broker.
type Options struct {
	// BufferSize is the per-subscriber channel capacity.
	BufferSize int
	// Logger receives drop warnings.
	Logger logging.Logger
}

type subscriber struct {
	ch     chan core.Event
	filter Filter
}

// Broker fans published events out to subscribers. Publishing never blocks:
// when a subscriber's buffer is full the event is dropped for that
// subscriber and a warning is logged.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool

	bufferSize int
	logger     logging.Logger
}

// NewBroker creates an empty broker.
func NewBroker(optFns ...func(o *Options)) *Broker {
	opts := Options{BufferSize: 256, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = 1
	}

	return &Broker{subs: make(map[uint64]*subscriber), bufferSize: opts.BufferSize, logger: opts.Logger}
}

// Subscribe registers a subscriber. A nil filter receives everything. The
// returned cancel func unsubscribes and closes the channel; it is safe to
// call more than once.
func (b *Broker) Subscribe(filter Filter) (<-chan core.Event, func()) {
	ch := make(chan core.Event, b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{ch: ch, filter: filter}

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Publish implements core.Publisher.
func (b *Broker) Publish(_ context.Context, ev core.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if s.filter != nil && !s.filter(ev) {
			continue
		}

		select {
		case s.ch <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event", "event_id", ev.ID, "type", string(ev.Type))
		}
	}

	return nil
}

// Len returns the number of active subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Close unsubscribes everyone. Later subscriptions receive closed channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}

	b.closed = true
}

var _ core.Publisher = (*Broker)(nil)
