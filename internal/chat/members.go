package chat

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Memberships caches the member user-id set per room. The durable store is
// the source of truth; the cached set is a disposable accelerator with a
// bounded TTL. An empty cached set is indistinguishable from an uncached
// room, so zero-member reads always fall through to the store.
type Memberships struct {
	cache Cache
	repo  *Repo
	ttl   time.Duration
}

func NewMemberships(cache Cache, repo *Repo, ttl time.Duration) *Memberships {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Memberships{cache: cache, repo: repo, ttl: ttl}
}

func (m *Memberships) MembersOf(ctx context.Context, roomID string) ([]uint64, error) {
	key := membersKey(roomID)

	cached, err := m.cache.SMembers(ctx, key)
	if err != nil {
		// cache trouble reads as a miss; the store below decides
		cached = nil
	}
	if len(cached) > 0 {
		ids := make([]uint64, 0, len(cached))
		for _, v := range cached {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("corrupt member set for room %s: %w", roomID, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	ids, err := m.repo.ListMemberUserIDs(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load members for room %s: %w", roomID, err)
	}
	if len(ids) > 0 {
		vals := make([]string, len(ids))
		for i, id := range ids {
			vals[i] = strconv.FormatUint(id, 10)
		}
		if err := m.cache.SAdd(ctx, key, vals...); err == nil {
			_ = m.cache.Expire(ctx, key, m.ttl)
		}
	}
	return ids, nil
}

// OnMemberAdded mirrors a durable membership add into the cached set, but
// only when a read has already warmed it. A single mutation never creates
// the entry.
func (m *Memberships) OnMemberAdded(ctx context.Context, roomID string, userID uint64) {
	key := membersKey(roomID)
	exists, err := m.cache.Exists(ctx, key)
	if err != nil || !exists {
		return
	}
	_ = m.cache.SAdd(ctx, key, strconv.FormatUint(userID, 10))
}

func (m *Memberships) OnMemberRemoved(ctx context.Context, roomID string, userID uint64) {
	key := membersKey(roomID)
	exists, err := m.cache.Exists(ctx, key)
	if err != nil || !exists {
		return
	}
	_ = m.cache.SRem(ctx, key, strconv.FormatUint(userID, 10))
}
