package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentworld/core"
)

func TestBroker_FanOutWithFilter(t *testing.T) {
	b := NewBroker()

	all, cancelAll := b.Subscribe(nil)
	defer cancelAll()
	chat, cancelChat := b.Subscribe(ForChat("w1", "c1"))
	defer cancelChat()

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, core.NewMessageEvent(core.EventMessage, "w1", core.NewMessage("alice", "hi").WithChat("c1"))))
	require.NoError(t, b.Publish(ctx, core.NewMessageEvent(core.EventMessage, "w1", core.NewMessage("alice", "hi").WithChat("c2"))))

	assert.Len(t, all, 2)
	require.Len(t, chat, 1)
	ev := <-chat
	assert.Equal(t, "c1", ev.ChatID)
	assert.Equal(t, "alice", ev.AgentName)
}

func TestBroker_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()

	ch, cancel := b.Subscribe(nil)
	assert.Equal(t, 1, b.Len())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())

	require.NoError(t, b.Publish(context.Background(), core.NewEvent(core.EventMessage, "w1")))
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := NewBroker(func(o *Options) { o.BufferSize = 1 })

	ch, cancel := b.Subscribe(nil)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(context.Background(), core.NewEvent(core.EventMessage, "w1")))
	}

	assert.Len(t, ch, 1)
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(nil)

	b.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe(nil)
	_, ok = <-late
	assert.False(t, ok)
}
