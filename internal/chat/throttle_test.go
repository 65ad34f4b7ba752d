package chat

import (
	"context"
	"testing"
	"time"
)

func TestThrottle_CoalescesBursts(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	roomID := seedRoomWithMembers(t, repo, []uint64{1})

	throttle := NewThrottle(newMemCache(), repo, 50*time.Millisecond)

	if err := throttle.TouchRoom(context.Background(), roomID, 1, time.Now()); err != nil {
		t.Fatalf("first touch: %v", err)
	}
	// second touch inside the window is a silent no-op
	if err := throttle.TouchRoom(context.Background(), roomID, 2, time.Now()); err != nil {
		t.Fatalf("throttled touch returned error: %v", err)
	}

	room, err := repo.GetRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.LastSeq != 1 {
		t.Fatalf("expected exactly one durable write (last_seq=1), got last_seq=%d", room.LastSeq)
	}

	time.Sleep(80 * time.Millisecond)

	if err := throttle.TouchRoom(context.Background(), roomID, 3, time.Now()); err != nil {
		t.Fatalf("touch after window: %v", err)
	}
	room, err = repo.GetRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.LastSeq != 3 {
		t.Fatalf("expected second durable write after TTL, got last_seq=%d", room.LastSeq)
	}
}

func TestThrottle_RecordActivityNeverThrottled(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	roomID := seedRoomWithMembers(t, repo, []uint64{7})

	throttle := NewThrottle(newMemCache(), repo, time.Hour)

	for seq := uint64(1); seq <= 3; seq++ {
		if err := throttle.RecordActivity(context.Background(), roomID, 7, seq); err != nil {
			t.Fatalf("record activity %d: %v", seq, err)
		}
	}

	member, err := repo.GetMember(context.Background(), roomID, 7)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.LastReadSeq != 3 {
		t.Fatalf("expected last_read_seq 3, got %d", member.LastReadSeq)
	}
}
