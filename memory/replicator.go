package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/logging"
)

// ReplicatorOptions configures a Replicator.
type ReplicatorOptions struct {
	// Logger receives warnings about skipped agents.
	Logger logging.Logger
}

// ownerState serializes writes to one agent's memory and caches the keys
// already recorded there.
type ownerState struct {
	mu     sync.Mutex
	loaded bool
	seen   map[string]struct{} // message ids
}

// Replicator fans every dispatched message into the private memory of each
// roster agent, rewriting it to the owner's perspective.
type Replicator struct {
	store  core.MemoryStore
	dir    core.AgentDirectory
	logger logging.Logger

	mu     sync.Mutex
	owners map[string]*ownerState
}

// NewReplicator creates a replicator writing to store and resolving roster
// names through dir.
func NewReplicator(store core.MemoryStore, dir core.AgentDirectory, optFns ...func(o *ReplicatorOptions)) *Replicator {
	opts := ReplicatorOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Replicator{
		store:  store,
		dir:    dir,
		logger: opts.Logger,
		owners: make(map[string]*ownerState),
	}
}

// Store returns the backing memory store.
func (r *Replicator) Store() core.MemoryStore { return r.store }

// RecordIncoming appends one entry for msg to the memory of every agent in
// roster and returns how many entries were newly written. Names that do not
// resolve are skipped with a warning. Messages already recorded for an owner
// are skipped silently. A store failure for one owner does not stop the
// fan-out to the others; all failures are returned joined.
func (r *Replicator) RecordIncoming(ctx context.Context, msg core.Message, roster []string) (int, error) {
	if msg.ID == "" {
		return 0, fmt.Errorf("%w: message without id", core.ErrInvalidMessage)
	}

	var (
		written int
		errs    []error
	)

	for _, name := range roster {
		p, ok := r.dir.Lookup(name)
		if !ok {
			r.logger.Warn("skipping replication to unknown agent", "agent", name, "message_id", msg.ID)
			continue
		}

		added, err := r.recordFor(ctx, p.Name, msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("replicate %s to %s: %w", msg.ID, p.Name, err))
			continue
		}

		if added {
			written++
		}
	}

	return written, errors.Join(errs...)
}

func (r *Replicator) recordFor(ctx context.Context, owner string, msg core.Message) (bool, error) {
	st := r.state(owner)

	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.loaded {
		history, err := r.store.GetAgentConversationHistory(ctx, owner)
		if err != nil {
			return false, err
		}

		for _, e := range history {
			st.seen[e.MessageID] = struct{}{}
		}

		st.loaded = true
	}

	if _, dup := st.seen[msg.ID]; dup {
		return false, nil
	}

	if err := r.store.AppendToAgentMemory(ctx, owner, EntryFor(owner, msg)); err != nil {
		return false, err
	}

	st.seen[msg.ID] = struct{}{}

	return true, nil
}

func (r *Replicator) state(owner string) *ownerState {
	key := strings.ToLower(owner)

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.owners[key]
	if !ok {
		st = &ownerState{seen: make(map[string]struct{})}
		r.owners[key] = st
	}

	return st
}

// EntryFor builds the copy of msg stored in owner's memory:
//
//   - owner authored msg: role assistant, sender and fromAgentId are the owner
//   - the human authored msg: role user, sender human, no fromAgentId
//   - the system authored msg: role user, sender system, no fromAgentId
//   - another agent authored msg: role user, sender rewritten to the owner,
//     fromAgentId holds the author
func EntryFor(owner string, msg core.Message) core.MemoryEntry {
	e := core.MemoryEntry{
		MessageID:        msg.ID,
		OwnerAgentID:     owner,
		ChatID:           msg.ChatID,
		Role:             core.RoleUser,
		Content:          msg.Content,
		CreatedAt:        msg.CreatedAt,
		ReplyToMessageID: msg.ReplyToMessageID,
	}

	switch {
	case core.SameName(msg.Sender, owner):
		e.Role = core.RoleAssistant
		e.Sender = owner
		e.FromAgentID = owner
	case msg.FromHuman():
		e.Sender = core.SenderHuman
	case msg.FromSystem():
		e.Sender = core.SenderSystem
	default:
		e.Sender = owner
		e.FromAgentID = msg.Sender
	}

	return e
}
