package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderClassification(t *testing.T) {
	assert.True(t, IsHuman("human"))
	assert.True(t, IsHuman("Human"))
	assert.False(t, IsHuman("alice"))

	assert.True(t, IsSystem("system"))
	assert.True(t, IsSystem(""))
	assert.False(t, IsSystem("human"))

	assert.True(t, IsAgentSender("alice"))
	assert.False(t, IsAgentSender("HUMAN"))
	assert.False(t, IsAgentSender(""))
}

func TestNewReply(t *testing.T) {
	parent := NewMessage(SenderHuman, "hi").WithChat("c1")
	reply := NewReply("alice", "hello", parent)

	assert.Equal(t, "c1", reply.ChatID)
	assert.Equal(t, parent.ID, reply.ReplyToMessageID)
	assert.NotEqual(t, parent.ID, reply.ID)
}

func TestTurnLimitAndPassContent(t *testing.T) {
	assert.Equal(t, "@human Turn limit reached (5 LLM calls). Please take control of the conversation.", TurnLimitContent(5))
	assert.Equal(t, "@human alice is passing control to you", PassControlContent("alice"))
}

func TestMemoryEntry_Helpers(t *testing.T) {
	human := MemoryEntry{MessageID: "m1", OwnerAgentID: "a1", Role: RoleUser, Sender: SenderHuman}
	assert.True(t, human.IsHumanCopy())
	assert.Equal(t, SenderHuman, human.Author())

	cross := MemoryEntry{MessageID: "m2", OwnerAgentID: "g1", Role: RoleUser, Sender: "g1", FromAgentID: "a1"}
	assert.False(t, cross.IsHumanCopy())
	assert.Equal(t, "a1", cross.Author())
	assert.Equal(t, EntryKey{MessageID: "m2", Owner: "g1"}, cross.Key())

	entries := []MemoryEntry{{ChatID: "c1"}, {ChatID: "c2"}, {ChatID: "c1"}}
	assert.Len(t, FilterChat(entries, "c1"), 2)
	assert.Len(t, FilterChat(entries, ""), 3)
}

func TestWorldConfig_EffectiveTurnLimit(t *testing.T) {
	assert.Equal(t, DefaultTurnLimit, WorldConfig{}.EffectiveTurnLimit())
	assert.Equal(t, 3, WorldConfig{TurnLimit: 3}.EffectiveTurnLimit())
}
