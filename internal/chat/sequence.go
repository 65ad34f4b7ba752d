package chat

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Sequencer allocates per-room, strictly increasing message sequence
// numbers. The counter lives in the cache under a bounded TTL and is
// hydrated lazily from the durable store's MAX(seq), so eviction never
// loses numbering: a fresh hydration picks up exactly where the persisted
// log ends.
type Sequencer struct {
	cache Cache
	repo  *Repo
	ttl   time.Duration
}

func NewSequencer(cache Cache, repo *Repo, ttl time.Duration) *Sequencer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sequencer{cache: cache, repo: repo, ttl: ttl}
}

// Next allocates the room's next sequence number.
//
// The existence check plus SetNX is a one-time bootstrap: when two cold
// starts race, only one SetNX wins and both INCRBYs land on the same
// counter, so numbers are never skipped or duplicated. After the key
// exists, the atomic increment is the sole arbiter.
func (s *Sequencer) Next(ctx context.Context, roomID string) (uint64, error) {
	if err := s.hydrate(ctx, roomID); err != nil {
		return 0, err
	}
	n, err := s.cache.IncrBy(ctx, seqKey(roomID), 1)
	if err != nil {
		return 0, fmt.Errorf("increment sequence for room %s: %w", roomID, err)
	}
	return uint64(n), nil
}

// Peek returns the last allocated sequence number without incrementing.
func (s *Sequencer) Peek(ctx context.Context, roomID string) (uint64, error) {
	if err := s.hydrate(ctx, roomID); err != nil {
		return 0, err
	}
	v, found, err := s.cache.Get(ctx, seqKey(roomID))
	if err != nil || !found {
		// evicted between hydrate and read; the durable max is the answer
		return s.repo.MaxSeq(ctx, roomID)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt sequence counter for room %s: %w", roomID, err)
	}
	return n, nil
}

func (s *Sequencer) hydrate(ctx context.Context, roomID string) error {
	exists, err := s.cache.Exists(ctx, seqKey(roomID))
	if err != nil {
		// cache timeout reads as absent; the durable store below decides
		exists = false
	}
	if exists {
		return nil
	}

	max, err := s.repo.MaxSeq(ctx, roomID)
	if err != nil {
		return fmt.Errorf("hydrate sequence for room %s: %w", roomID, err)
	}
	// losers of a concurrent bootstrap increment the winner's value
	if _, err := s.cache.SetNX(ctx, seqKey(roomID), strconv.FormatUint(max, 10), s.ttl); err != nil {
		return fmt.Errorf("bootstrap sequence for room %s: %w", roomID, err)
	}
	return nil
}
