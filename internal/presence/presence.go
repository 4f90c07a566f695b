// Package presence tracks which instructor connections are live for a session
// across every hub process. The store is the only cross-process mutable state
// in the hub; all mutations must be atomic set operations so concurrent
// attach/detach from different processes never lose an update.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// memberTTL bounds how long a dead hub process can strand entries in a
// presence set. Every attach and every teacher heartbeat re-adds the member,
// pushing the expiry out; a process that dies without detaching just stops
// refreshing and the set ages out.
const memberTTL = 2 * time.Minute

// Store is the capability the hub needs from any atomic-set-capable external
// store. Backed by Redis in production, by an in-memory fake in tests.
// AddMember is also the refresh operation: re-adding an existing member
// extends the set's lifetime.
type Store interface {
	AddMember(ctx context.Context, set, member string) error
	RemoveMember(ctx context.Context, set, member string) error
	MemberCount(ctx context.Context, set string) (int64, error)
}

// TeacherSetKey names the per-session set of live teacher connection IDs.
func TeacherSetKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("presence:session:%s:teacher", sessionID)
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) AddMember(ctx context.Context, set, member string) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, set, member)
	pipe.Expire(ctx, set, memberTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) RemoveMember(ctx context.Context, set, member string) error {
	return s.client.SRem(ctx, set, member).Err()
}

func (s *RedisStore) MemberCount(ctx context.Context, set string) (int64, error) {
	return s.client.SCard(ctx, set).Result()
}
