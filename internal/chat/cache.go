package chat

import (
	"context"
	"fmt"
	"time"
)

// Cache is the slice of the shared key-value store this package relies on.
// Implemented by redisstore.Store; tests use an in-memory fake. The atomic
// IncrBy and create-only SetNX are the only concurrency primitives the core
// takes — no application-level locks.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

func seqKey(roomID string) string     { return fmt.Sprintf("chat:seq:%s", roomID) }
func membersKey(roomID string) string { return fmt.Sprintf("room:members:%s", roomID) }
func touchKey(roomID string) string   { return fmt.Sprintf("room:touch:%s", roomID) }
