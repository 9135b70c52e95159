package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = never
}

// MemoryStore is the in-process Store used by tests and by installs that run
// without any persistent backend. Semantics mirror the real backends,
// including the per-entry ceiling and lazy expiry.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	maxValue int

	// now is swappable so tests can step time.
	now func() time.Time
}

func NewMemoryStore(maxValue int) *MemoryStore {
	if maxValue <= 0 {
		maxValue = DefaultMaxValueSize
	}
	return &MemoryStore{
		entries:  make(map[string]memoryEntry),
		maxValue: maxValue,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if len(value) > s.maxValue {
		return ErrValueTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) MaxValueSize() int {
	return s.maxValue
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Len reports the number of live entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
