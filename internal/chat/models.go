package chat

import "time"

type RoomType string

const (
	RoomPrivate RoomType = "private"
	RoomGroup   RoomType = "group"
)

// group rooms are capped at 100 members
const maxGroupMembers = 100

type MessageKind string

const (
	KindMessage MessageKind = "message"
	KindSystem  MessageKind = "system"
)

type Room struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Type        RoomType  `gorm:"type:varchar(16);not null" json:"type"`
	MemberCount int       `gorm:"not null" json:"member_count"`
	LastSeq     uint64    `gorm:"not null;default:0" json:"last_seq"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
}

func (Room) TableName() string { return "rooms" }

type Member struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID      string    `gorm:"size:36;not null;index:uniq_room_user,unique,priority:1" json:"room_id"`
	UserID      uint64    `gorm:"not null;index:uniq_room_user,unique,priority:2;index" json:"user_id"`
	LastReadSeq uint64    `gorm:"not null;default:0" json:"last_read_seq"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Member) TableName() string { return "members" }

// Message is append-only: rows are never updated or deleted here.
// (room_id, seq) is the logical key; seq is strictly increasing per room.
type Message struct {
	ID        uint64      `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID    string      `gorm:"size:36;not null;index:uniq_room_seq,unique,priority:1" json:"room_id"`
	Seq       uint64      `gorm:"not null;index:uniq_room_seq,unique,priority:2" json:"seq"`
	UserID    uint64      `gorm:"not null" json:"user_id"`
	Kind      MessageKind `gorm:"type:varchar(16);not null" json:"kind"`
	Body      string      `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
