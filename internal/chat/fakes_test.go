package chat

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// one pooled connection so concurrent test writers serialize instead
	// of tripping sqlite busy errors
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Room{}, &Member{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// memCache implements Cache with real TTL semantics so throttle and
// hydration tests exercise expiry.
type memCache struct {
	mu     sync.Mutex
	vals   map[string]string
	sets   map[string]map[string]struct{}
	expiry map[string]time.Time
}

func newMemCache() *memCache {
	return &memCache{
		vals:   make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
		expiry: make(map[string]time.Time),
	}
}

func (m *memCache) expired(key string) bool {
	exp, ok := m.expiry[key]
	if ok && time.Now().After(exp) {
		delete(m.vals, key)
		delete(m.sets, key)
		delete(m.expiry, key)
		return true
	}
	return false
}

func (m *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", false, nil
	}
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *memCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (m *memCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.expired(key) {
		if _, ok := m.vals[key]; ok {
			return false, nil
		}
	}
	m.vals[key] = value
	m.expiry[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *memCache) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if !m.expired(key) {
		if v, ok := m.vals[key]; ok {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, errors.New("value is not an integer")
			}
			cur = parsed
		}
	}
	cur += n
	m.vals[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *memCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return false, nil
	}
	_, v := m.vals[key]
	_, s := m.sets[key]
	return v || s, nil
}

func (m *memCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (m *memCache) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	delete(m.sets, key)
	delete(m.expiry, key)
	return nil
}

func (m *memCache) SAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, mem := range members {
		set[mem] = struct{}{}
	}
	return nil
}

func (m *memCache) SRem(ctx context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (m *memCache) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return nil, nil
	}
	set := m.sets[key]
	out := make([]string, 0, len(set))
	for mem := range set {
		out = append(out, mem)
	}
	return out, nil
}

// fakePresence routes a fixed set of users and records deliveries.
type fakePresence struct {
	mu        sync.Mutex
	routes    map[uint64]string
	delivered map[string][]*MessageEvent
	failKey   string
}

func newFakePresence() *fakePresence {
	return &fakePresence{
		routes:    make(map[uint64]string),
		delivered: make(map[string][]*MessageEvent),
	}
}

func (p *fakePresence) Route(ctx context.Context, userID uint64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.routes[userID]
	return key, ok
}

func (p *fakePresence) Deliver(ctx context.Context, routingKey string, event *MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if routingKey == p.failKey {
		return errors.New("connection gone")
	}
	p.delivered[routingKey] = append(p.delivered[routingKey], event)
	return nil
}

func (p *fakePresence) deliveredCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, events := range p.delivered {
		n += len(events)
	}
	return n
}

// fakePusher records enqueued payloads, optionally failing every call.
type fakePusher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *fakePusher) Enqueue(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}
