package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentworld/core"
)

// View kinds.
const (
	ViewGlobal   = "global"
	ViewFiltered = "filtered"
)

// Transcript is an exported conversation view.
type Transcript struct {
	ID         string             `json:"id"`
	WorldID    string             `json:"world_id"`
	ChatID     string             `json:"chat_id"`
	View       string             `json:"view"`
	Agents     []string           `json:"agents,omitempty"`
	Entries    []core.MemoryEntry `json:"entries"`
	ExportedAt time.Time          `json:"exported_at"`
}

// NewTranscript snapshots entries. Passing agent ids marks the transcript as
// a filtered view.
func NewTranscript(worldID, chatID string, entries []core.MemoryEntry, agentIDs ...string) Transcript {
	t := Transcript{
		ID:         core.NewID(),
		WorldID:    worldID,
		ChatID:     chatID,
		View:       ViewGlobal,
		Entries:    append([]core.MemoryEntry(nil), entries...),
		ExportedAt: time.Now().UTC(),
	}

	if len(agentIDs) > 0 {
		t.View = ViewFiltered
		t.Agents = append([]string(nil), agentIDs...)
	}

	return t
}

// Encode serializes t as indented JSON.
func Encode(t Transcript) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Decode parses a transcript produced by Encode.
func Decode(data []byte) (Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}

// Markdown renders the transcript as a readable document.
func (t Transcript) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s / %s (%s view)\n\n", t.WorldID, t.ChatID, t.View)

	if len(t.Agents) > 0 {
		fmt.Fprintf(&b, "Agents: %s\n\n", strings.Join(t.Agents, ", "))
	}

	for _, e := range t.Entries {
		switch {
		case e.Role == core.RoleAssistant:
			fmt.Fprintf(&b, "- **%s**: %s\n", e.OwnerAgentID, e.Content)
		case e.FromAgentID != "":
			fmt.Fprintf(&b, "- **%s** (heard by %s): %s\n", e.FromAgentID, e.OwnerAgentID, e.Content)
		default:
			fmt.Fprintf(&b, "- **%s**: %s\n", e.Sender, e.Content)
		}
	}

	return b.String()
}
