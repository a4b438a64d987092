package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/internal/testutil"
	"github.com/hupe1980/agentworld/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	engine    *Engine
	world     *World
	llm       *testutil.ScriptedCompleter
	publisher *testutil.RecordingPublisher
}

func newFixture(t *testing.T, turnLimit int, optFns ...func(o *Options)) *fixture {
	t.Helper()

	f := &fixture{
		llm:       testutil.NewScriptedCompleter(),
		publisher: &testutil.RecordingPublisher{},
	}

	fns := append([]func(o *Options){func(o *Options) {
		o.LLM = f.llm
		o.Publisher = f.publisher
	}}, optFns...)

	f.engine = New(fns...)

	w, err := f.engine.RegisterWorld(
		core.WorldConfig{ID: "w1", ChatID: "main", TurnLimit: turnLimit},
		testutil.Profiles("alice", "bob", "carol")...,
	)
	require.NoError(t, err)

	f.world = w

	return f
}

func (f *fixture) send(t *testing.T, content, sender string) core.Message {
	t.Helper()

	msg, err := f.engine.ReceiveMessage(context.Background(), "w1", "", content, sender)
	require.NoError(t, err)

	return msg
}

func (f *fixture) count(t *testing.T, name string) int {
	t.Helper()

	p, err := f.engine.Agent("w1", name)
	require.NoError(t, err)

	return p.LLMCallCount
}

func (f *fixture) memory(t *testing.T, name string) []core.MemoryEntry {
	t.Helper()

	entries, err := f.world.Memory().GetAgentConversationHistory(context.Background(), name)
	require.NoError(t, err)

	return entries
}

func TestEngine_HumanBroadcastReachesEveryAgent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	f := newFixture(t, 0, func(o *Options) { o.Metrics = m })

	msg := f.send(t, "hello everyone", core.SenderHuman)

	assert.Equal(t, "main", msg.ChatID)

	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, 1, f.llm.CallsFor(name), name)
		assert.Equal(t, 1, f.count(t, name), name)

		entries := f.memory(t, name)
		require.Len(t, entries, 1, name)
		assert.True(t, entries[0].IsHumanCopy())
	}

	// empty model output publishes nothing
	assert.Len(t, f.publisher.Messages(), 1)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.LLMCalls.WithLabelValues("w1", "alice", metrics.OutcomeSuccess)))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.ReplicatedEntries.WithLabelValues("w1")))
}

func TestEngine_MentionRoutesToSingleAgent(t *testing.T) {
	f := newFixture(t, 0)
	f.llm.Reply("bob", "fine thanks")

	f.send(t, "@bob what's up", core.SenderHuman)

	assert.Equal(t, 0, f.llm.CallsFor("alice"))
	assert.Equal(t, 1, f.llm.CallsFor("bob"))
	assert.Equal(t, 0, f.llm.CallsFor("carol"))

	calls := f.llm.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].History, 1)
	assert.Equal(t, "@bob what's up", calls[0].History[0].Content)
	assert.Contains(t, calls[0].Prompt, "You are bob")

	reply := f.publisher.From("bob")
	require.Len(t, reply, 1)
	assert.Equal(t, "fine thanks", reply[0].Content)

	aliceMem := f.memory(t, "alice")
	require.Len(t, aliceMem, 2)
	assert.Equal(t, core.RoleUser, aliceMem[1].Role)
	assert.Equal(t, "alice", aliceMem[1].Sender)
	assert.Equal(t, "bob", aliceMem[1].FromAgentID)

	bobMem := f.memory(t, "bob")
	require.Len(t, bobMem, 2)
	assert.Equal(t, core.RoleAssistant, bobMem[1].Role)
}

func TestEngine_RelayCascade(t *testing.T) {
	f := newFixture(t, 0)
	f.llm.Reply("alice", "@bob what is 2+2", "")
	f.llm.Reply("bob", "4")

	human := f.send(t, "@alice ask bob", core.SenderHuman)

	assert.Equal(t, 2, f.llm.CallsFor("alice"))
	assert.Equal(t, 1, f.llm.CallsFor("bob"))
	assert.Equal(t, 0, f.llm.CallsFor("carol"))

	bob := f.publisher.From("bob")
	require.Len(t, bob, 1)
	assert.Equal(t, "@alice 4", bob[0].Content)

	alice := f.publisher.From("alice")
	require.Len(t, alice, 1)
	assert.Equal(t, human.ID, alice[0].ReplyToMessageID)
	assert.Equal(t, alice[0].ID, bob[0].ReplyToMessageID)

	calls := f.llm.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "alice", last.Agent)
	assert.Len(t, last.History, 3)

	global, err := f.engine.GlobalView(context.Background(), "w1", "")
	require.NoError(t, err)
	require.Len(t, global, 4)

	perMessage := map[string]int{}
	for _, e := range global {
		perMessage[e.MessageID]++
	}
	assert.Equal(t, 1, perMessage[human.ID])
	assert.Equal(t, 2, perMessage[alice[0].ID])
	assert.Equal(t, 1, perMessage[bob[0].ID])

	filtered, err := f.engine.FilteredView(context.Background(), "w1", "main", "bob")
	require.NoError(t, err)
	require.Len(t, filtered, 3)
	for _, e := range filtered {
		assert.Equal(t, "bob", e.OwnerAgentID)
	}

	history, err := f.engine.History("w1", "main")
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestEngine_PingPongStopsAtTurnLimit(t *testing.T) {
	f := newFixture(t, 2)
	f.llm.Reply("alice", "@bob ping", "@bob ping")
	f.llm.Reply("bob", "pong", "pong")

	f.send(t, "@alice start", core.SenderHuman)

	assert.Equal(t, 2, f.llm.CallsFor("alice"))
	assert.Equal(t, 2, f.llm.CallsFor("bob"))

	limits := f.publisher.OfType(core.EventTurnLimit)
	require.Len(t, limits, 1)
	assert.Equal(t, "alice", limits[0].Message.Sender)
	assert.Equal(t, core.TurnLimitContent(2), limits[0].Message.Content)

	bob := f.publisher.From("bob")
	require.Len(t, bob, 2)
	assert.Equal(t, "@alice pong", bob[1].Content)
	assert.Equal(t, bob[1].ID, limits[0].Message.ReplyToMessageID)

	// the redirect is replicated but triggers nobody
	assert.Equal(t, 0, f.llm.CallsFor("carol"))
	assert.Len(t, f.memory(t, "carol"), 6)
}

func TestEngine_TurnLimitRedirectWithoutModelCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	f := newFixture(t, 5, func(o *Options) { o.Metrics = m })

	for i := 0; i < 5; i++ {
		f.send(t, "@alice q", "bob")
	}

	require.Equal(t, 5, f.count(t, "alice"))

	trigger := f.send(t, "@alice please help", "bob")

	assert.Equal(t, 5, f.llm.CallsFor("alice"))

	limits := f.publisher.OfType(core.EventTurnLimit)
	require.Len(t, limits, 1)
	assert.Equal(t, "@human Turn limit reached (5 LLM calls). Please take control of the conversation.", limits[0].Message.Content)
	assert.Equal(t, trigger.ID, limits[0].Message.ReplyToMessageID)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.TurnLimitHits.WithLabelValues("w1", "alice")))

	// human input resets the budget
	f.send(t, "@alice hi", core.SenderHuman)

	assert.Equal(t, 6, f.llm.CallsFor("alice"))
	assert.Equal(t, 1, f.count(t, "alice"))
}

func TestEngine_PassControlIsTerminal(t *testing.T) {
	f := newFixture(t, 0)
	f.llm.Reply("alice", "All done. <world>PASS</world>")

	f.send(t, "@alice wrap up", core.SenderHuman)

	passes := f.publisher.OfType(core.EventPassControl)
	require.Len(t, passes, 1)
	assert.Equal(t, core.SenderSystem, passes[0].Message.Sender)
	assert.Equal(t, "@human alice is passing control to you", passes[0].Message.Content)

	assert.Equal(t, 1, f.count(t, "alice"))
	assert.Equal(t, 0, f.llm.CallsFor("bob"))
	assert.Equal(t, 0, f.llm.CallsFor("carol"))

	bobMem := f.memory(t, "bob")
	require.Len(t, bobMem, 2)
	assert.Equal(t, core.SenderSystem, bobMem[1].Sender)
	assert.Empty(t, bobMem[1].FromAgentID)
}

func TestEngine_EmptySenderIsSystemBroadcast(t *testing.T) {
	f := newFixture(t, 0)

	msg := f.send(t, "@alice status update", "")

	assert.Equal(t, core.SenderSystem, msg.Sender)

	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, 1, f.llm.CallsFor(name), name)
	}
}

func TestEngine_TimeoutPublishesErrorEvent(t *testing.T) {
	f := newFixture(t, 0, func(o *Options) { o.LLMTimeout = 20 * time.Millisecond })
	f.llm.Then("alice", testutil.Step{Text: "late", Wait: make(chan struct{})})

	f.send(t, "@alice are you there", core.SenderHuman)

	errs := f.publisher.OfType(core.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, TimeoutErrorMessage, errs[0].Error)
	assert.Equal(t, "alice", errs[0].AgentName)
	assert.Equal(t, "main", errs[0].ChatID)

	assert.Equal(t, 0, f.count(t, "alice"))
	assert.Len(t, f.memory(t, "alice"), 1)
	assert.Empty(t, f.publisher.From("alice"))
}

func TestEngine_ModelErrorPropagates(t *testing.T) {
	f := newFixture(t, 0)
	boom := errors.New("boom")
	f.llm.Fail("alice", boom)

	_, err := f.engine.ReceiveMessage(context.Background(), "w1", "", "@alice hi", core.SenderHuman)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "alice")

	assert.Equal(t, 0, f.count(t, "alice"))
	assert.Empty(t, f.publisher.OfType(core.EventError))
}

func TestEngine_StopDiscardsInFlightResult(t *testing.T) {
	f := newFixture(t, 0)
	block := make(chan struct{})
	defer close(block)

	f.llm.Then("alice", testutil.Step{Text: "too late", Wait: block})

	type result struct {
		msg core.Message
		err error
	}

	done := make(chan result, 1)

	go func() {
		msg, err := f.engine.ReceiveMessage(context.Background(), "w1", "main", "@alice think hard", core.SenderHuman)
		done <- result{msg: msg, err: err}
	}()

	require.Eventually(t, func() bool { return f.llm.CallsFor("alice") == 1 }, time.Second, 5*time.Millisecond)

	n, err := f.engine.Stop("w1", "main")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case res := <-done:
		require.NoError(t, res.err)
	case <-time.After(time.Second):
		t.Fatal("ReceiveMessage did not return after Stop")
	}

	assert.Equal(t, 0, f.count(t, "alice"))
	assert.Len(t, f.memory(t, "alice"), 1)
	assert.Empty(t, f.publisher.From("alice"))

	n, err = f.engine.Stop("w1", "main")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_HistoryIsScopedToChat(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.engine.ReceiveMessage(context.Background(), "w1", "c1", "@alice one", core.SenderHuman)
	require.NoError(t, err)

	_, err = f.engine.ReceiveMessage(context.Background(), "w1", "c2", "@alice two", core.SenderHuman)
	require.NoError(t, err)

	calls := f.llm.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[1].History, 1)
	assert.Equal(t, "c2", calls[1].History[0].ChatID)

	view, err := f.engine.FilteredView(context.Background(), "w1", "c1", "alice")
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "@alice one", view[0].Content)
}

func TestEngine_Callbacks(t *testing.T) {
	callbacks := NewCallbackManager()

	var dispatched []string

	callbacks.RegisterCallback(NewFunctionCallback(CallbackOnDispatch, func(_ context.Context, c *CallbackContext) error {
		dispatched = append(dispatched, c.Message.Content)
		return nil
	}))
	callbacks.RegisterCallback(NewFunctionCallback(CallbackBeforeModel, func(_ context.Context, c *CallbackContext) error {
		if c.AgentID == "carol" {
			return errors.New("vetoed")
		}
		return nil
	}))

	f := newFixture(t, 0, func(o *Options) { o.Callbacks = callbacks })
	f.llm.Reply("bob", "sure")

	f.send(t, "@bob hi", core.SenderHuman)
	assert.Equal(t, []string{"@bob hi", "sure"}, dispatched)

	_, err := f.engine.ReceiveMessage(context.Background(), "w1", "", "@carol hi", core.SenderHuman)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vetoed")
	assert.Equal(t, 0, f.llm.CallsFor("carol"))
	assert.Equal(t, 0, f.count(t, "carol"))
}

func TestEngine_Errors(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.engine.ReceiveMessage(context.Background(), "nope", "", "hi", core.SenderHuman)
	assert.ErrorIs(t, err, core.ErrWorldNotFound)

	_, err = f.engine.ReceiveMessage(context.Background(), "w1", "", "hi", "mallory")
	assert.ErrorIs(t, err, core.ErrInvalidMessage)

	_, err = f.engine.RegisterWorld(core.WorldConfig{ID: "w1"})
	assert.Error(t, err)

	_, err = f.engine.RegisterWorld(core.WorldConfig{ID: " "})
	assert.Error(t, err)

	_, err = f.engine.RegisterWorld(core.WorldConfig{ID: "w2"}, testutil.Profiles("dup", "DUP")...)
	assert.ErrorIs(t, err, core.ErrDuplicateAgent)

	_, err = f.engine.Agent("w1", "mallory")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)

	_, err = f.engine.Stop("nope", "")
	assert.ErrorIs(t, err, core.ErrWorldNotFound)

	assert.Equal(t, []string{"w1"}, f.engine.Worlds())
}
