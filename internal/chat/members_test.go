package chat

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedRoomWithMembers(t *testing.T, repo *Repo, userIDs []uint64) string {
	t.Helper()
	room := &Room{
		ID:          uuid.NewString(),
		Type:        RoomGroup,
		MemberCount: len(userIDs),
	}
	if err := repo.CreateRoomWithMembers(context.Background(), room, userIDs); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room.ID
}

func sortedIDs(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestMemberships_PopulatesFromStore(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	roomID := seedRoomWithMembers(t, repo, []uint64{1, 2, 3})

	members := NewMemberships(newMemCache(), repo, time.Hour)

	ids, err := members.MembersOf(context.Background(), roomID)
	if err != nil {
		t.Fatalf("members of: %v", err)
	}
	got := sortedIDs(ids)
	want := []uint64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMemberships_WarmCacheServesWithoutStore(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	roomID := seedRoomWithMembers(t, repo, []uint64{1, 2})

	members := NewMemberships(newMemCache(), repo, time.Hour)

	// warm the cache
	if _, err := members.MembersOf(context.Background(), roomID); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// drop durable rows; a cached read must not notice
	if err := db.Where("room_id = ?", roomID).Delete(&Member{}).Error; err != nil {
		t.Fatalf("delete members: %v", err)
	}

	ids, err := members.MembersOf(context.Background(), roomID)
	if err != nil {
		t.Fatalf("members of: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected cached 2 members, got %v", ids)
	}
}

func TestMemberships_OnMemberAddedMutatesWarmCacheOnly(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	roomID := seedRoomWithMembers(t, repo, []uint64{1, 2})

	cache := newMemCache()
	members := NewMemberships(cache, repo, time.Hour)

	// cold cache: the hook must not create an entry
	members.OnMemberAdded(context.Background(), roomID, 99)
	exists, err := cache.Exists(context.Background(), membersKey(roomID))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("cold hook created a cache entry")
	}

	// warm, then the hook applies without a store round trip
	if _, err := members.MembersOf(context.Background(), roomID); err != nil {
		t.Fatalf("warm: %v", err)
	}
	members.OnMemberAdded(context.Background(), roomID, 3)

	if err := db.Where("room_id = ?", roomID).Delete(&Member{}).Error; err != nil {
		t.Fatalf("delete members: %v", err)
	}

	ids, err := members.MembersOf(context.Background(), roomID)
	if err != nil {
		t.Fatalf("members of: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == 3 {
			found = true
		}
	}
	if !found || len(ids) != 3 {
		t.Fatalf("expected cached set {1,2,3}, got %v", ids)
	}
}

func TestMemberships_OnMemberRemoved(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	roomID := seedRoomWithMembers(t, repo, []uint64{1, 2, 3})

	members := NewMemberships(newMemCache(), repo, time.Hour)

	if _, err := members.MembersOf(context.Background(), roomID); err != nil {
		t.Fatalf("warm: %v", err)
	}
	members.OnMemberRemoved(context.Background(), roomID, 2)

	ids, err := members.MembersOf(context.Background(), roomID)
	if err != nil {
		t.Fatalf("members of: %v", err)
	}
	for _, id := range ids {
		if id == 2 {
			t.Fatalf("removed member still cached: %v", ids)
		}
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 members, got %v", ids)
	}
}

func TestMemberships_TTLExpiryRefetches(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	roomID := seedRoomWithMembers(t, repo, []uint64{1})

	members := NewMemberships(newMemCache(), repo, 30*time.Millisecond)

	if _, err := members.MembersOf(context.Background(), roomID); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// durable change lands while cached
	if err := repo.AddMember(context.Background(), roomID, 2); err != nil {
		t.Fatalf("add member: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	ids, err := members.MembersOf(context.Background(), roomID)
	if err != nil {
		t.Fatalf("members of: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected refetched 2 members after TTL, got %v", ids)
	}
}
