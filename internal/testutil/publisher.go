package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentworld/core"
)

// RecordingPublisher captures published events. It is safe for concurrent use.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
}

// Publish implements core.Publisher.
func (p *RecordingPublisher) Publish(_ context.Context, ev core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// Events returns a copy of the captured events.
func (p *RecordingPublisher) Events() []core.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Event(nil), p.events...)
}

// OfType returns the captured events of type t.
func (p *RecordingPublisher) OfType(t core.EventType) []core.Event {
	var out []core.Event
	for _, ev := range p.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Messages returns the messages carried by captured events, in order.
func (p *RecordingPublisher) Messages() []core.Message {
	var out []core.Message
	for _, ev := range p.Events() {
		if ev.Message != nil {
			out = append(out, *ev.Message)
		}
	}
	return out
}

// From returns the carried messages authored by sender.
func (p *RecordingPublisher) From(sender string) []core.Message {
	var out []core.Message
	for _, m := range p.Messages() {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	return out
}
