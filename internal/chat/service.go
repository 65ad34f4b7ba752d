package chat

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Presence resolves and serves live connections. Implemented by ws.Hub.
type Presence interface {
	// Route returns the recipient's routing key, or false when the user
	// has no live connection.
	Route(ctx context.Context, userID uint64) (string, bool)
	// Deliver pushes one event over the live connection behind the key.
	Deliver(ctx context.Context, routingKey string, event *MessageEvent) error
}

// Pusher is the offline push channel: at-least-once, fire-and-forget.
type Pusher interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// Sender identifies the message author as carried by their access token.
type Sender struct {
	UserID     uint64
	Nickname   string
	ProfileURL string
}

// MessageEvent is what recipients see, live or via push.
type MessageEvent struct {
	Type       string      `json:"type"`
	RoomID     string      `json:"room_id"`
	Seq        uint64      `json:"seq"`
	UserID     uint64      `json:"user_id"`
	Nickname   string      `json:"nickname"`
	ProfileURL string      `json:"profile_url,omitempty"`
	Kind       MessageKind `json:"kind"`
	Body       string      `json:"message"`
	CreatedAt  time.Time   `json:"created_at"`
}

type Service struct {
	repo     *Repo
	seq      *Sequencer
	members  *Memberships
	throttle *Throttle
	presence Presence
	pusher   Pusher
}

func NewService(repo *Repo, seq *Sequencer, members *Memberships, throttle *Throttle, presence Presence, pusher Pusher) *Service {
	return &Service{
		repo:     repo,
		seq:      seq,
		members:  members,
		throttle: throttle,
		presence: presence,
		pusher:   pusher,
	}
}

func (s *Service) Sequencer() *Sequencer { return s.seq }

// Send runs one message through allocation, persistence, room touch,
// member resolution and per-recipient delivery. The insert is the
// durability commit point: everything after it is best effort and a
// recipient failure never fails the send.
func (s *Service) Send(ctx context.Context, roomID string, sender Sender, kind MessageKind, body string) (*Message, error) {
	// 1) allocate the room's next sequence number
	seq, err := s.seq.Next(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// 2) persist; once this succeeds the message is sent
	msg := &Message{
		RoomID:    roomID,
		Seq:       seq,
		UserID:    sender.UserID,
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	// 3) move the room-list pointer, throttled
	if err := s.throttle.TouchRoom(ctx, roomID, seq, msg.CreatedAt); err != nil {
		log.Printf("touch room %s: %v", roomID, err)
	}

	// 4) resolve recipients
	memberIDs, err := s.members.MembersOf(ctx, roomID)
	if err != nil {
		log.Printf("resolve members for room %s: %v", roomID, err)
		return msg, nil
	}

	// 5) deliver to every member, live socket first, push fallback
	event := &MessageEvent{
		Type:       "message",
		RoomID:     roomID,
		Seq:        seq,
		UserID:     sender.UserID,
		Nickname:   sender.Nickname,
		ProfileURL: sender.ProfileURL,
		Kind:       kind,
		Body:       body,
		CreatedAt:  msg.CreatedAt,
	}

	var wg sync.WaitGroup
	for _, uid := range memberIDs {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			s.deliverOne(ctx, uid, event)
		}(uid)
	}
	// 6) all recipients settle independently before the send completes
	wg.Wait()

	return msg, nil
}

func (s *Service) deliverOne(ctx context.Context, userID uint64, event *MessageEvent) {
	if key, ok := s.presence.Route(ctx, userID); ok {
		if err := s.presence.Deliver(ctx, key, event); err != nil {
			log.Printf("live delivery to user %d: %v", userID, err)
		}
		return
	}

	if event.UserID == userID {
		// the sender has no push to receive for their own message
		return
	}

	payload, err := json.Marshal(pushPayload{To: userID, Event: event})
	if err != nil {
		log.Printf("encode push for user %d: %v", userID, err)
		return
	}
	if err := s.pusher.Enqueue(ctx, payload); err != nil {
		log.Printf("push enqueue for user %d: %v", userID, err)
	}
}

type pushPayload struct {
	To    uint64        `json:"to"`
	Event *MessageEvent `json:"event"`
}

// ListMessages returns one history page in ascending seq order. beforeSeq
// (0 = newest page) is the cursor; the next page's cursor is the lowest seq
// returned. Storage failure propagates instead of masquerading as an empty
// room.
func (s *Service) ListMessages(ctx context.Context, roomID string, requesterID uint64, limit int, beforeSeq uint64) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	if _, err := s.repo.GetMember(ctx, roomID, requesterID); err != nil {
		return nil, err
	}

	desc, err := s.repo.ListMessagesBefore(ctx, roomID, limit, beforeSeq)
	if err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc, nil
}

// MarkRead advances the caller's read position to the room's last allocated
// sequence. Used on leave/switch/disconnect; best effort at call sites.
func (s *Service) MarkRead(ctx context.Context, roomID string, userID uint64) error {
	last, err := s.seq.Peek(ctx, roomID)
	if err != nil {
		return err
	}
	return s.throttle.RecordActivity(ctx, roomID, userID, last)
}
