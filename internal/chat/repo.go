package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// InsertMessage appends one message. The unique (room_id, seq) index rejects
// a duplicate sequence number instead of silently overwriting.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// MaxSeq returns the highest persisted sequence number for the room, 0 if
// the room has no messages yet.
func (r *Repo) MaxSeq(ctx context.Context, roomID string) (uint64, error) {
	var max uint64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

// ListMessagesBefore returns messages in DESC seq order (newest -> oldest).
func (r *Repo) ListMessagesBefore(ctx context.Context, roomID string, limit int, beforeSeq uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		Limit(limit)

	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// LastMessage returns the newest message of the room, nil if none.
func (r *Repo) LastMessage(ctx context.Context, roomID string) (*Message, error) {
	var m Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetMember returns the membership row, ErrNotMember if absent.
func (r *Repo) GetMember(ctx context.Context, roomID string, userID uint64) (*Member, error) {
	var m Member
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) ListMemberUserIDs(ctx context.Context, roomID string) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&Member{}).
		Where("room_id = ?", roomID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateMemberLastRead stores the member's read position. Never throttled.
func (r *Repo) UpdateMemberLastRead(ctx context.Context, roomID string, userID uint64, lastSeq uint64) error {
	return r.db.WithContext(ctx).
		Model(&Member{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_seq", lastSeq).Error
}

// TouchRoom moves the room's last-message pointer. Callers throttle this.
func (r *Repo) TouchRoom(ctx context.Context, roomID string, lastSeq uint64, ts time.Time) error {
	return r.db.WithContext(ctx).
		Model(&Room{}).
		Where("id = ?", roomID).
		Updates(map[string]any{
			"last_seq":   lastSeq,
			"updated_at": ts,
		}).Error
}

func (r *Repo) CreateRoomWithMembers(ctx context.Context, room *Room, userIDs []uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		members := make([]Member, 0, len(userIDs))
		for _, uid := range userIDs {
			members = append(members, Member{RoomID: room.ID, UserID: uid})
		}
		return tx.Create(&members).Error
	})
}

// AddMember grows the room inside one transaction so the member-count cap
// holds under concurrent invites.
func (r *Repo) AddMember(ctx context.Context, roomID string, userID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Room{}).
			Where("id = ?", roomID).
			Update("member_count", gorm.Expr("member_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}

		var room Room
		if err := tx.Select("member_count").First(&room, "id = ?", roomID).Error; err != nil {
			return err
		}
		if room.MemberCount > maxGroupMembers {
			return ErrInvalidRequest
		}

		return tx.Create(&Member{RoomID: roomID, UserID: userID}).Error
	})
}

// RemoveMember shrinks the room and deletes it once the last member leaves.
func (r *Repo) RemoveMember(ctx context.Context, roomID string, userID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Room{}).
			Where("id = ?", roomID).
			Update("member_count", gorm.Expr("member_count - 1")).Error; err != nil {
			return err
		}

		if err := tx.Where("room_id = ? AND user_id = ?", roomID, userID).
			Delete(&Member{}).Error; err != nil {
			return err
		}

		var room Room
		if err := tx.Select("member_count").First(&room, "id = ?", roomID).Error; err != nil {
			return err
		}
		if room.MemberCount <= 0 {
			return tx.Delete(&Room{}, "id = ?", roomID).Error
		}
		return nil
	})
}

// ListRoomsForUser returns rooms the user belongs to, most recently active
// first. updatedBefore (zero time = first page) is the pagination cursor.
func (r *Repo) ListRoomsForUser(ctx context.Context, userID uint64, limit int, updatedBefore time.Time) ([]Room, error) {
	q := r.db.WithContext(ctx).
		Model(&Room{}).
		Joins("JOIN members ON members.room_id = rooms.id").
		Where("members.user_id = ?", userID).
		Order("rooms.updated_at DESC").
		Limit(limit)

	if !updatedBefore.IsZero() {
		q = q.Where("rooms.updated_at < ?", updatedBefore)
	}

	var rooms []Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}
