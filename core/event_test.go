package core

import (
	"context"
	"testing"
)

func TestEvent_Constructors(t *testing.T) {
	msg := NewMessage("alice", "@bob hello").WithChat("c1")
	ev := NewMessageEvent(EventMessage, "w1", msg)
	if ev.ID == "" || ev.Timestamp.IsZero() || ev.WorldID != "w1" || ev.ChatID != "c1" {
		t.Fatalf("NewMessageEvent did not initialize fields correctly: %+v", ev)
	}
	if ev.AgentName != "alice" || ev.Content() != "@bob hello" {
		t.Fatalf("unexpected agent/content: %+v", ev)
	}

	human := NewMessageEvent(EventMessage, "w1", NewMessage(SenderHuman, "hi"))
	if human.AgentName != "" {
		t.Fatalf("human messages should not carry an agent name: %+v", human)
	}

	errEv := NewErrorEvent("w1", "c1", "alice", "Request timed out")
	if errEv.Type != EventError || errEv.Error != "Request timed out" || errEv.Content() != "" {
		t.Fatalf("NewErrorEvent malformed: %+v", errEv)
	}
}

func TestPublisherFunc(t *testing.T) {
	var got []Event
	p := PublisherFunc(func(_ context.Context, ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err := p.Publish(context.Background(), NewEvent(EventMessage, "w1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
}

func TestEvent_IDUniqueness(t *testing.T) {
	if NewID() == NewID() {
		t.Error("Expected unique IDs")
	}
}
