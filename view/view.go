// Package view rebuilds display views from replicated agent memories.
//
// Replication stores one copy of every message per agent, so a naive merge
// of all memories repeats each message N times. Global keeps one copy of
// every human and system message, the author's own copy of every agent
// message, and for agent messages the single cross-agent copy held by the
// agent that answered it. Filtered restricts the merge to a set of owners.
package view

import (
	"sort"
	"strings"

	"github.com/hupe1980/agentworld/core"
)

// Global returns the deduplicated chronological merge of entries.
func Global(entries []core.MemoryEntry) []core.MemoryEntry {
	groups, order := groupByMessage(entries)
	repliers := replierIndex(entries)
	speakers := assistantTimeline(entries)

	out := make([]core.MemoryEntry, 0, len(order))

	for _, id := range order {
		group := groups[id]
		first := group[0]

		if first.IsHumanCopy() {
			out = append(out, first)
			continue
		}

		var own []core.MemoryEntry
		for _, e := range group {
			if e.Role == core.RoleAssistant {
				own = append(own, e)
			}
		}

		out = append(out, own...)

		author := first.Author()
		replier := repliers.next(id, author)
		if replier == "" && len(own) > 0 {
			replier = speakers.after(own[0], author)
		}

		if copyOf, ok := userCopyOwnedBy(group, replier); ok {
			out = append(out, copyOf)
			continue
		}

		if len(own) == 0 {
			// author memory missing or non-agent sender: keep exactly one copy
			out = append(out, firstUserCopy(group))
		}
	}

	sortChronologically(out)

	return out
}

// Filtered returns every entry owned by one of agentIDs, with a single copy
// of each human or system message, sorted by creation time. Owner matching
// is case-insensitive. No agent ids yields an empty view.
func Filtered(entries []core.MemoryEntry, agentIDs ...string) []core.MemoryEntry {
	owners := make(map[string]struct{}, len(agentIDs))
	for _, id := range agentIDs {
		owners[strings.ToLower(id)] = struct{}{}
	}

	seen := make(map[string]struct{})
	out := make([]core.MemoryEntry, 0)

	for _, e := range entries {
		if _, ok := owners[strings.ToLower(e.OwnerAgentID)]; !ok {
			continue
		}

		if isBroadcastCopy(e) {
			if _, dup := seen[e.MessageID]; dup {
				continue
			}
			seen[e.MessageID] = struct{}{}
		}

		out = append(out, e)
	}

	sortChronologically(out)

	return out
}

func isBroadcastCopy(e core.MemoryEntry) bool {
	return e.Role == core.RoleUser && e.FromAgentID == "" && !core.IsAgentSender(e.Sender)
}

func groupByMessage(entries []core.MemoryEntry) (map[string][]core.MemoryEntry, []string) {
	groups := make(map[string][]core.MemoryEntry)
	order := make([]string, 0)

	for _, e := range entries {
		if _, ok := groups[e.MessageID]; !ok {
			order = append(order, e.MessageID)
		}
		groups[e.MessageID] = append(groups[e.MessageID], e)
	}

	return groups, order
}

// replies maps a message id to the authored replies it received.
type replies map[string][]core.MemoryEntry

func replierIndex(entries []core.MemoryEntry) replies {
	idx := make(replies)
	for _, e := range entries {
		if e.Role == core.RoleAssistant && e.ReplyToMessageID != "" {
			idx[e.ReplyToMessageID] = append(idx[e.ReplyToMessageID], e)
		}
	}
	for _, rs := range idx {
		sortChronologically(rs)
	}
	return idx
}

// next returns the earliest agent other than author that replied to id.
func (r replies) next(id, author string) string {
	for _, e := range r[id] {
		if !core.SameName(e.OwnerAgentID, author) {
			return e.OwnerAgentID
		}
	}
	return ""
}

// timeline is the chronological list of assistant entries.
type timeline []core.MemoryEntry

func assistantTimeline(entries []core.MemoryEntry) timeline {
	t := make(timeline, 0)
	for _, e := range entries {
		if e.Role == core.RoleAssistant {
			t = append(t, e)
		}
	}
	sortChronologically(t)
	return t
}

// after returns the first agent other than author speaking after e.
func (t timeline) after(e core.MemoryEntry, author string) string {
	for _, s := range t {
		if s.CreatedAt.After(e.CreatedAt) && !core.SameName(s.OwnerAgentID, author) {
			return s.OwnerAgentID
		}
	}
	return ""
}

func userCopyOwnedBy(group []core.MemoryEntry, owner string) (core.MemoryEntry, bool) {
	if owner == "" {
		return core.MemoryEntry{}, false
	}
	for _, e := range group {
		if e.Role == core.RoleUser && core.SameName(e.OwnerAgentID, owner) {
			return e, true
		}
	}
	return core.MemoryEntry{}, false
}

func firstUserCopy(group []core.MemoryEntry) core.MemoryEntry {
	for _, e := range group {
		if e.Role == core.RoleUser {
			return e
		}
	}
	return group[0]
}

func sortChronologically(entries []core.MemoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
