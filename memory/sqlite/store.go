// Package sqlite provides a durable core.MemoryStore on top of SQLite using
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/agentworld/core"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_memory (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	world_id TEXT NOT NULL,
	owner TEXT NOT NULL,
	message_id TEXT NOT NULL,
	chat_id TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	sender TEXT NOT NULL,
	from_agent TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	reply_to TEXT NOT NULL DEFAULT '',
	UNIQUE(world_id, owner, message_id)
);
CREATE INDEX IF NOT EXISTS idx_agent_memory_owner ON agent_memory(world_id, owner, seq);
`

// Options configures a Store.
type Options struct {
	// WorldID scopes all rows so several worlds can share one database file.
	WorldID string
}

// Store persists agent memories in a single SQLite table. Rows are unique per
// (world, owner, message id); appending an existing key is a no-op.
type Store struct {
	db      *sql.DB
	worldID string
	owned   bool
}

// Open opens (or creates) the database at path. The special path ":memory:"
// creates a private in-memory database.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection serializes writers and keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)

	s, err := New(db, optFns...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s.owned = true

	return s, nil
}

// New wraps an existing handle and ensures the schema exists. Close on the
// returned store does not close db.
func New(db *sql.DB, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, worldID: opts.WorldID}, nil
}

// ForWorld returns a view of the same database scoped to worldID.
func (s *Store) ForWorld(worldID string) *Store {
	return &Store{db: s.db, worldID: worldID}
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// AppendToAgentMemory implements core.MemoryStore.
func (s *Store) AppendToAgentMemory(ctx context.Context, agentID string, e core.MemoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO agent_memory
			(world_id, owner, message_id, chat_id, role, sender, from_agent, content, created_at, reply_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.worldID, agentID, e.MessageID, e.ChatID, string(e.Role), e.Sender, e.FromAgentID,
		e.Content, e.CreatedAt.UTC().UnixNano(), e.ReplyToMessageID,
	)
	if err != nil {
		return fmt.Errorf("append memory of %s: %w", agentID, err)
	}
	return nil
}

// GetAgentConversationHistory implements core.MemoryStore.
func (s *Store) GetAgentConversationHistory(ctx context.Context, agentID string) ([]core.MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, chat_id, role, sender, from_agent, content, created_at, reply_to
		FROM agent_memory
		WHERE world_id = ? AND owner = ?
		ORDER BY seq`, s.worldID, agentID)
	if err != nil {
		return nil, fmt.Errorf("query memory of %s: %w", agentID, err)
	}
	defer rows.Close()

	out := make([]core.MemoryEntry, 0)

	for rows.Next() {
		var (
			e       core.MemoryEntry
			role    string
			created int64
		)

		if err := rows.Scan(&e.MessageID, &e.ChatID, &role, &e.Sender, &e.FromAgentID, &e.Content, &created, &e.ReplyToMessageID); err != nil {
			return nil, fmt.Errorf("scan memory of %s: %w", agentID, err)
		}

		e.OwnerAgentID = agentID
		e.Role = core.Role(role)
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}

	return out, rows.Err()
}

var _ core.MemoryStore = (*Store)(nil)
