// Package redis provides a core.MemoryStore on top of Redis so several
// processes can share agent memories.
//
// Each agent memory is a list of JSON encoded entries plus a set of recorded
// message ids; both are updated by one server side script so a duplicate
// append never produces a second list element.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentworld/core"
)

// appendScript adds ARGV[2] to the list KEYS[2] only if ARGV[1] is new in the
// set KEYS[1].
var appendScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
	redis.call('RPUSH', KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// Options configures a Store.
type Options struct {
	// Prefix namespaces all keys. Defaults to "agentworld".
	Prefix string
	// WorldID scopes keys to one world.
	WorldID string
}

// Store implements core.MemoryStore with Redis lists.
type Store struct {
	client  redis.UniversalClient
	prefix  string
	worldID string
}

// Connect parses redisURL, pings the server and returns a store.
func Connect(ctx context.Context, redisURL string, optFns ...func(o *Options)) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return New(client, optFns...), nil
}

// New wraps an existing client.
func New(client redis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{Prefix: "agentworld"}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{client: client, prefix: opts.Prefix, worldID: opts.WorldID}
}

// ForWorld returns a store sharing the client but scoped to worldID.
func (s *Store) ForWorld(worldID string) *Store {
	return &Store{client: s.client, prefix: s.prefix, worldID: worldID}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// entriesKey returns the key for an agent's entry list.
func (s *Store) entriesKey(agentID string) string {
	return fmt.Sprintf("%s:%s:memory:%s:entries", s.prefix, s.worldID, agentID)
}

// idsKey returns the key for an agent's recorded message id set.
func (s *Store) idsKey(agentID string) string {
	return fmt.Sprintf("%s:%s:memory:%s:ids", s.prefix, s.worldID, agentID)
}

// AppendToAgentMemory implements core.MemoryStore.
func (s *Store) AppendToAgentMemory(ctx context.Context, agentID string, e core.MemoryEntry) error {
	e.OwnerAgentID = agentID

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	keys := []string{s.idsKey(agentID), s.entriesKey(agentID)}
	if err := appendScript.Run(ctx, s.client, keys, e.MessageID, string(data)).Err(); err != nil {
		return fmt.Errorf("append memory of %s: %w", agentID, err)
	}

	return nil
}

// GetAgentConversationHistory implements core.MemoryStore.
func (s *Store) GetAgentConversationHistory(ctx context.Context, agentID string) ([]core.MemoryEntry, error) {
	raw, err := s.client.LRange(ctx, s.entriesKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read memory of %s: %w", agentID, err)
	}

	out := make([]core.MemoryEntry, 0, len(raw))

	for _, item := range raw {
		var e core.MemoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode memory of %s: %w", agentID, err)
		}
		out = append(out, e)
	}

	return out, nil
}

var _ core.MemoryStore = (*Store)(nil)
