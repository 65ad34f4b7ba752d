package chat

import (
	"context"
	"fmt"
	"time"
)

// Throttle bounds the durable write rate of the room's shared last-message
// pointer. The marker is a best-effort time window, not a mutex: while it
// is set, TouchRoom is a silent no-op and the pointer is eventually, not
// immediately, consistent. Read-position writes are never throttled.
type Throttle struct {
	cache Cache
	repo  *Repo
	ttl   time.Duration
}

func NewThrottle(cache Cache, repo *Repo, ttl time.Duration) *Throttle {
	if ttl <= 0 {
		ttl = 100 * time.Millisecond
	}
	return &Throttle{cache: cache, repo: repo, ttl: ttl}
}

// RecordActivity stores the member's last-read sequence. Unthrottled:
// read-position accuracy matters per user.
func (t *Throttle) RecordActivity(ctx context.Context, roomID string, userID uint64, lastSeq uint64) error {
	if err := t.repo.UpdateMemberLastRead(ctx, roomID, userID, lastSeq); err != nil {
		return fmt.Errorf("record read position for room %s user %d: %w", roomID, userID, err)
	}
	return nil
}

// TouchRoom updates the room's last-seq/updated-at pointer unless the
// throttle window is open. Callers must not treat the no-op as an error.
func (t *Throttle) TouchRoom(ctx context.Context, roomID string, lastSeq uint64, ts time.Time) error {
	throttled, err := t.cache.Exists(ctx, touchKey(roomID))
	if err != nil {
		// assume absent: worst case is one extra durable write
		throttled = false
	}
	if throttled {
		return nil
	}

	if err := t.repo.TouchRoom(ctx, roomID, lastSeq, ts); err != nil {
		return fmt.Errorf("touch room %s: %w", roomID, err)
	}
	// open the window only after the write landed
	_ = t.cache.SetWithTTL(ctx, touchKey(roomID), "1", t.ttl)
	return nil
}
