package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory. Used when REDIS_URL is unset.
type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]memoryItem
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, items: map[string]memoryItem{}}
}

// WithClock replaces the clock used for expiry.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = memoryItem{data: append([]byte(nil), data...), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, id)
		return nil, ErrNotFound
	}
	return append([]byte(nil), item.data...), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
