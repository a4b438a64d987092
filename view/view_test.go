package view

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/memory"
)

type row struct {
	MessageID string
	Owner     string
	Role      core.Role
	Sender    string
	From      string
}

func rows(entries []core.MemoryEntry) []row {
	out := make([]row, 0, len(entries))
	for _, e := range entries {
		out = append(out, row{MessageID: e.MessageID, Owner: e.OwnerAgentID, Role: e.Role, Sender: e.Sender, From: e.FromAgentID})
	}
	return out
}

// replicate builds the memories produced by fanning msgs out to roster,
// concatenated owner by owner like a projection over per-agent histories.
func replicate(roster []string, msgs ...core.Message) []core.MemoryEntry {
	var out []core.MemoryEntry
	for _, owner := range roster {
		for _, m := range msgs {
			out = append(out, memory.EntryFor(owner, m))
		}
	}
	return out
}

func at(m core.Message, id string, ts time.Time) core.Message {
	m.ID = id
	m.CreatedAt = ts
	return m
}

// relayScenario: human says "hi", then g1, a1 and o1 reply in sequence,
// each addressing the previous speaker.
func relayScenario() []core.MemoryEntry {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	hi := at(core.NewMessage(core.SenderHuman, "hi"), "hi", t0)
	g := at(core.NewReply("g1", "hello human", hi), "g1-reply", t0.Add(time.Second))
	a := at(core.NewReply("a1", "@g1 hello g1", g), "a1-reply", t0.Add(2*time.Second))
	o := at(core.NewReply("o1", "@a1 hello a1", a), "o1-reply", t0.Add(3*time.Second))

	return replicate([]string{"a1", "g1", "o1"}, hi, g, a, o)
}

func TestFiltered_SingleAgentRelay(t *testing.T) {
	got := Filtered(relayScenario(), "g1")

	want := []row{
		{MessageID: "hi", Owner: "g1", Role: core.RoleUser, Sender: core.SenderHuman},
		{MessageID: "g1-reply", Owner: "g1", Role: core.RoleAssistant, Sender: "g1", From: "g1"},
		{MessageID: "a1-reply", Owner: "g1", Role: core.RoleUser, Sender: "g1", From: "a1"},
		{MessageID: "o1-reply", Owner: "g1", Role: core.RoleUser, Sender: "g1", From: "o1"},
	}

	if diff := cmp.Diff(want, rows(got)); diff != "" {
		t.Fatalf("filtered view mismatch (-want +got):\n%s", diff)
	}
}

func TestFiltered_DedupesHumanCopies(t *testing.T) {
	got := Filtered(relayScenario(), "G1", "o1")

	require.Len(t, got, 7)

	humans := 0
	for _, e := range got {
		if e.IsHumanCopy() {
			humans++
		}
		assert.Contains(t, []string{"g1", "o1"}, e.OwnerAgentID)
	}
	assert.Equal(t, 1, humans)

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.Before(got[i-1].CreatedAt))
	}
}

func TestFiltered_NoOwners(t *testing.T) {
	assert.Empty(t, Filtered(relayScenario()))
}

func TestGlobal_RelayKeepsReplyChain(t *testing.T) {
	got := Global(relayScenario())

	want := []row{
		{MessageID: "hi", Owner: "a1", Role: core.RoleUser, Sender: core.SenderHuman},
		{MessageID: "g1-reply", Owner: "g1", Role: core.RoleAssistant, Sender: "g1", From: "g1"},
		{MessageID: "g1-reply", Owner: "a1", Role: core.RoleUser, Sender: "a1", From: "g1"},
		{MessageID: "a1-reply", Owner: "a1", Role: core.RoleAssistant, Sender: "a1", From: "a1"},
		{MessageID: "a1-reply", Owner: "o1", Role: core.RoleUser, Sender: "o1", From: "a1"},
		{MessageID: "o1-reply", Owner: "o1", Role: core.RoleAssistant, Sender: "o1", From: "o1"},
	}

	if diff := cmp.Diff(want, rows(got)); diff != "" {
		t.Fatalf("global view mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobal_BroadcastRepliesUseEarliestReplier(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hi := at(core.NewMessage(core.SenderHuman, "hi all"), "hi", t0)
	b := at(core.NewReply("bob", "hi", hi), "bob-reply", t0.Add(time.Second))
	c := at(core.NewReply("carol", "@bob agreed", b), "carol-reply", t0.Add(2*time.Second))
	a := at(core.NewReply("alice", "@bob me too", b), "alice-reply", t0.Add(3*time.Second))

	got := rows(Global(replicate([]string{"alice", "bob", "carol"}, hi, b, c, a)))

	// bob's message is kept as bob's own copy plus carol's copy only
	var bobCopies []row
	for _, r := range got {
		if r.MessageID == "bob-reply" {
			bobCopies = append(bobCopies, r)
		}
	}
	want := []row{
		{MessageID: "bob-reply", Owner: "bob", Role: core.RoleAssistant, Sender: "bob", From: "bob"},
		{MessageID: "bob-reply", Owner: "carol", Role: core.RoleUser, Sender: "carol", From: "bob"},
	}
	if diff := cmp.Diff(want, bobCopies); diff != "" {
		t.Fatalf("bob copies mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, got, 6)
}

func TestGlobal_FallsBackToNextSpeaker(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	x := at(core.NewMessage("alice", "@bob ping"), "x", t0)
	y := at(core.NewMessage("bob", "@alice pong"), "y", t0.Add(time.Second))

	got := rows(Global(replicate([]string{"alice", "bob"}, x, y)))

	want := []row{
		{MessageID: "x", Owner: "alice", Role: core.RoleAssistant, Sender: "alice", From: "alice"},
		{MessageID: "x", Owner: "bob", Role: core.RoleUser, Sender: "bob", From: "alice"},
		{MessageID: "y", Owner: "bob", Role: core.RoleAssistant, Sender: "bob", From: "bob"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("global view mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobal_SystemMessageKeptOnce(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pass := at(core.NewMessage(core.SenderSystem, core.PassControlContent("alice")), "pass", t0)

	got := Global(replicate([]string{"alice", "bob", "carol"}, pass))

	require.Len(t, got, 1)
	assert.Equal(t, core.SenderSystem, got[0].Sender)
}

func TestGlobal_MissingAuthorMemoryKeepsOneCopy(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := at(core.NewMessage("ghost", "@bob boo"), "boo", t0)

	got := Global(replicate([]string{"alice", "bob"}, m))

	require.Len(t, got, 1)
	assert.Equal(t, "ghost", got[0].FromAgentID)
}

func TestGlobal_Empty(t *testing.T) {
	assert.Empty(t, Global(nil))
}
