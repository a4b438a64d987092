package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/engine"
	"github.com/hupe1980/agentworld/internal/testutil"
	"github.com/hupe1980/agentworld/pubsub"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRunner(t *testing.T, llm *testutil.ScriptedCompleter) *Runner {
	t.Helper()

	broker := pubsub.NewBroker()
	t.Cleanup(broker.Close)

	eng := engine.New(func(o *engine.Options) {
		o.LLM = llm
		o.Publisher = broker
	})

	_, err := eng.RegisterWorld(core.WorldConfig{ID: "w1", ChatID: "main"}, testutil.Profiles("alice", "bob")...)
	require.NoError(t, err)

	return New(eng, broker)
}

func TestRunner_SendStreamsCascade(t *testing.T) {
	llm := testutil.NewScriptedCompleter().Reply("bob", "yo")
	r := newRunner(t, llm)

	events, err := r.Send(context.Background(), "w1", "", "@bob hi", core.SenderHuman)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, core.SenderHuman, events[0].Message.Sender)
	assert.Equal(t, "main", events[0].ChatID)
	assert.Equal(t, "[bob] yo", FormatEvent(events[1]))
}

func TestRunner_RunReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	llm := testutil.NewScriptedCompleter().Fail("alice", boom)
	r := newRunner(t, llm)

	_, events, errs, err := r.Run(context.Background(), "w1", "main", "@alice hi", core.SenderHuman)
	require.NoError(t, err)

	n := 0
	for range events {
		n++
	}

	assert.Equal(t, 1, n)
	assert.ErrorIs(t, <-errs, boom)

	_, _, _, err = r.Run(context.Background(), "missing", "", "hi", core.SenderHuman)
	assert.ErrorIs(t, err, core.ErrWorldNotFound)

	assert.Error(t, r.Cancel("unknown"))
}

func TestRunner_Chat(t *testing.T) {
	llm := testutil.NewScriptedCompleter().Reply("bob", "yo")
	r := newRunner(t, llm)

	in := strings.NewReader("@bob hi\n\n/agents\n/view\n/view bob\n/foo\n/quit\n@alice never sent\n")

	var out bytes.Buffer

	require.NoError(t, r.Chat(context.Background(), "w1", "", in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"[bob] yo",
		"alice\t0/5 LLM calls",
		"bob\t1/5 LLM calls",
		"[human] @bob hi",
		"[bob] yo",
		"[human] @bob hi",
		"[bob] yo",
		"! unknown command /foo",
	}, lines)

	assert.Equal(t, 0, llm.CallsFor("alice"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "! alice: Request timed out", FormatEvent(core.NewErrorEvent("w", "c", "alice", "Request timed out")))

	entry := core.MemoryEntry{OwnerAgentID: "bob", Sender: "bob", FromAgentID: "alice", Role: core.RoleUser, Content: "@bob hey"}
	assert.Equal(t, "[alice -> bob] @bob hey", FormatEntry(entry))
}
