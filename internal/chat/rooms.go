package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// RoomService owns room/member mutation and the room list. Mutations go to
// the durable store first; the cached member set is only mirrored when it
// already exists (write-behind after a warming read).
type RoomService struct {
	repo    *Repo
	members *Memberships
	chat    *Service
}

func NewRoomService(repo *Repo, members *Memberships, chat *Service) *RoomService {
	return &RoomService{repo: repo, members: members, chat: chat}
}

// announce fans out a system message to the room. Best effort: membership
// already changed durably, a failed announcement only costs the event.
func (s *RoomService) announce(ctx context.Context, roomID string, userID uint64, body string) {
	if _, err := s.chat.Send(ctx, roomID, Sender{UserID: userID}, KindSystem, body); err != nil {
		log.Printf("announce to room %s: %v", roomID, err)
	}
}

// CreateRoom creates a room containing the creator and the given friends.
// Private rooms hold exactly two members.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID uint64, friendIDs []uint64, roomType RoomType) (*Room, error) {
	switch roomType {
	case RoomPrivate:
		if len(friendIDs) != 1 {
			return nil, ErrInvalidRequest
		}
	case RoomGroup:
		if len(friendIDs) == 0 || len(friendIDs)+1 > maxGroupMembers {
			return nil, ErrInvalidRequest
		}
	default:
		return nil, ErrInvalidRequest
	}

	userIDs := append([]uint64{creatorID}, friendIDs...)
	room := &Room{
		ID:          uuid.NewString(),
		Type:        roomType,
		MemberCount: len(userIDs),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.repo.CreateRoomWithMembers(ctx, room, userIDs); err != nil {
		return nil, err
	}
	return room, nil
}

// InviteMember adds a user to a group room. The inviter must be a member;
// private rooms never grow.
func (s *RoomService) InviteMember(ctx context.Context, inviterID uint64, roomID string, friendID uint64) error {
	if _, err := s.repo.GetMember(ctx, roomID, inviterID); err != nil {
		return err
	}

	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Type != RoomGroup {
		return ErrInvalidRequest
	}

	if err := s.repo.AddMember(ctx, roomID, friendID); err != nil {
		return err
	}
	s.members.OnMemberAdded(ctx, roomID, friendID)
	s.announce(ctx, roomID, friendID, fmt.Sprintf("user %d joined the room", friendID))
	return nil
}

// ExitRoom removes the caller from a group room; the room is deleted when
// the last member leaves.
func (s *RoomService) ExitRoom(ctx context.Context, userID uint64, roomID string) error {
	if _, err := s.repo.GetMember(ctx, roomID, userID); err != nil {
		return err
	}

	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Type != RoomGroup {
		return ErrInvalidRequest
	}

	if err := s.repo.RemoveMember(ctx, roomID, userID); err != nil {
		return err
	}
	s.members.OnMemberRemoved(ctx, roomID, userID)
	// the last member leaving deletes the room, nobody is left to tell
	if room.MemberCount > 1 {
		s.announce(ctx, roomID, userID, fmt.Sprintf("user %d left the room", userID))
	}
	return nil
}

// RoomSummary is one row of the caller's room list.
type RoomSummary struct {
	ID          string    `json:"id"`
	Type        RoomType  `json:"type"`
	MemberCount int       `json:"member_count"`
	Unread      uint64    `json:"unread"`
	LastMessage string    `json:"last_message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListRooms returns the caller's rooms, most recently active first, with
// unread counts derived from the member's read position.
func (s *RoomService) ListRooms(ctx context.Context, userID uint64, limit int, updatedBefore time.Time) ([]RoomSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rooms, err := s.repo.ListRoomsForUser(ctx, userID, limit, updatedBefore)
	if err != nil {
		return nil, err
	}

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		sum, err := s.summarize(ctx, userID, &room)
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, nil
}

// GetRoom returns one room summary for a member.
func (s *RoomService) GetRoom(ctx context.Context, userID uint64, roomID string) (*RoomSummary, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.summarize(ctx, userID, room)
}

func (s *RoomService) summarize(ctx context.Context, userID uint64, room *Room) (*RoomSummary, error) {
	member, err := s.repo.GetMember(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}

	var unread uint64
	if room.LastSeq > member.LastReadSeq {
		unread = room.LastSeq - member.LastReadSeq
	}

	var lastBody string
	if last, err := s.repo.LastMessage(ctx, room.ID); err == nil && last != nil {
		lastBody = last.Body
	}

	return &RoomSummary{
		ID:          room.ID,
		Type:        room.Type,
		MemberCount: room.MemberCount,
		Unread:      unread,
		LastMessage: lastBody,
		UpdatedAt:   room.UpdatedAt,
	}, nil
}
