package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/peachgram/chat-backend/internal/chat"
)

// Cache is the slice of the key-value store presence needs. Entries carry
// no TTL; they are deleted on disconnect.
type Cache interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
}

func presenceKey(userID uint64) string { return fmt.Sprintf("socket:%d", userID) }

// Hub owns every live connection in this process and mirrors each user's
// routing key into the cache. One routing key per user: a reconnect
// replaces (and closes) the previous connection.
type Hub struct {
	cache Cache

	mu     sync.RWMutex
	byUser map[uint64]*Client
	byKey  map[string]*Client
}

func NewHub(cache Cache) *Hub {
	return &Hub{
		cache:  cache,
		byUser: make(map[uint64]*Client),
		byKey:  make(map[string]*Client),
	}
}

func (h *Hub) register(ctx context.Context, c *Client) error {
	h.mu.Lock()
	if old, ok := h.byUser[c.user.UserID]; ok {
		delete(h.byKey, old.ID)
		close(old.send)
	}
	h.byUser[c.user.UserID] = c
	h.byKey[c.ID] = c
	h.mu.Unlock()

	return h.cache.Set(ctx, presenceKey(c.user.UserID), c.ID)
}

// unregister drops the connection and deletes the presence entry. The
// entry is deleted only while this connection still owns it, so the old
// socket's teardown after a reconnect leaves the new session routable.
func (h *Hub) unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	if cur, ok := h.byUser[c.user.UserID]; ok && cur == c {
		delete(h.byUser, c.user.UserID)
	}
	if _, ok := h.byKey[c.ID]; ok {
		delete(h.byKey, c.ID)
		close(c.send)
	}
	h.mu.Unlock()

	key, found, err := h.cache.Get(ctx, presenceKey(c.user.UserID))
	if err == nil && found && key != c.ID {
		return
	}
	_ = h.cache.Del(ctx, presenceKey(c.user.UserID))
}

// Route looks up the user's live routing key. A cache failure reads as
// offline: the consequence is a push fallback, never a lost message.
func (h *Hub) Route(ctx context.Context, userID uint64) (string, bool) {
	key, found, err := h.cache.Get(ctx, presenceKey(userID))
	if err != nil || !found || key == "" {
		return "", false
	}
	return key, true
}

// Deliver pushes one event to the connection behind the routing key.
//
// The non-blocking send happens under the read lock: register/unregister
// close a client's send channel only under the write lock, so a delivery
// can never race a reconnect into a send on a closed channel.
func (h *Hub) Deliver(ctx context.Context, routingKey string, event *chat.MessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byKey[routingKey]
	if !ok {
		return errors.New("no connection for routing key")
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// trySend queues a payload for the client if it is still registered.
// Dropped otherwise; same locking discipline as Deliver.
func (h *Hub) trySend(c *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.byKey[c.ID] != c {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
