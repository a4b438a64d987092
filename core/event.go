package core

import (
	"context"
	"time"
)

// EventType categorizes outbound events.
type EventType string

const (
	// EventMessage carries an ordinary chat message.
	EventMessage EventType = "message"
	// EventTurnLimit carries a turn-limit redirect authored by an agent.
	EventTurnLimit EventType = "turn-limit"
	// EventPassControl carries a pass-control handoff authored by the system.
	EventPassControl EventType = "pass-control"
	// EventError reports a recovered agent failure (e.g. a timed out call).
	EventError EventType = "error"
)

// Event is the unit handed to a Publisher. Wire formats are owned by the
// transport that consumes it.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	WorldID   string    `json:"world_id"`
	ChatID    string    `json:"chat_id,omitempty"`
	AgentName string    `json:"agent_name,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates a bare event of type t for worldID.
func NewEvent(t EventType, worldID string) Event {
	return Event{
		ID:        NewID(),
		Type:      t,
		WorldID:   worldID,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageEvent wraps msg in an event of type t.
func NewMessageEvent(t EventType, worldID string, msg Message) Event {
	e := NewEvent(t, worldID)
	e.ChatID = msg.ChatID
	e.Message = &msg
	if IsAgentSender(msg.Sender) {
		e.AgentName = msg.Sender
	}
	return e
}

// NewErrorEvent reports a recovered failure of agentName.
func NewErrorEvent(worldID, chatID, agentName, errMsg string) Event {
	e := NewEvent(EventError, worldID)
	e.ChatID = chatID
	e.AgentName = agentName
	e.Error = errMsg
	return e
}

// Content returns the message content carried by the event, if any.
func (e Event) Content() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.Content
}

// Publisher emits events to the outside world.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, ev Event) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// NoOpPublisher discards every event.
type NoOpPublisher struct{}

// Publish implements Publisher.
func (NoOpPublisher) Publish(context.Context, Event) error { return nil }
