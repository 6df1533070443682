package tier

import (
	"context"
	"sort"
	"sync"
	"time"
)

// evictFraction is the share of a quota-limited tier's entries removed per
// reactive eviction pass.
const evictFraction = 0.25

// SessionStore is the session-scoped, quota-limited tier. Unlike the memory
// tier it never evicts on its own: a write that would exceed the quota fails
// with ErrQuotaExceeded, and the caller decides whether to reclaim space via
// Evict and retry. Evict removes the oldest-accessed 25% of entries.
type SessionStore struct {
	mu      sync.Mutex
	quota   int64
	used    int64
	entries map[string]*Entry

	now     func() time.Time
	onEvict func(*Entry)
}

// NewSession creates a session tier with the given byte quota.
func NewSession(quotaBytes int64) *SessionStore {
	return &SessionStore{
		quota:   quotaBytes,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// SetNow overrides the tier's clock. Intended for tests.
func (s *SessionStore) SetNow(now func() time.Time) { s.now = now }

// SetOnEvict registers a callback invoked for every evicted entry. The
// callback runs with the tier lock held and must not call back into the tier.
func (s *SessionStore) SetOnEvict(fn func(*Entry)) { s.onEvict = fn }

func (s *SessionStore) Kind() Kind { return KindSession }

func (s *SessionStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	e.AccessedAt = s.now()
	e.AccessCount++
	return e.Clone(), nil
}

func (s *SessionStore) Set(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldSize int64
	if old, ok := s.entries[e.Key]; ok {
		oldSize = old.Size
	}
	if s.quota > 0 && s.used-oldSize+e.Size > s.quota {
		return ErrQuotaExceeded
	}

	c := e.Clone()
	s.entries[c.Key] = c
	s.used += c.Size - oldSize
	return nil
}

// Evict removes the oldest-accessed 25% of entries (at least one), skipping
// critical entries, and returns the removed keys.
func (s *SessionStore) Evict(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	victims := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Priority == Critical {
			continue
		}
		victims = append(victims, e)
	}
	if len(victims) == 0 {
		return nil, nil
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].AccessedAt.Before(victims[j].AccessedAt)
	})

	n := len(s.entries) / 4
	if n < 1 {
		n = 1
	}
	if n > len(victims) {
		n = len(victims)
	}

	keys := make([]string, 0, n)
	for _, e := range victims[:n] {
		delete(s.entries, e.Key)
		s.used -= e.Size
		keys = append(keys, e.Key)
		if s.onEvict != nil {
			s.onEvict(e)
		}
	}
	return keys, nil
}

func (s *SessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.used -= e.Size
	}
	return nil
}

func (s *SessionStore) Clear(_ context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category == "" {
		s.entries = make(map[string]*Entry)
		s.used = 0
		return nil
	}
	for k, e := range s.entries {
		if e.Category == category {
			delete(s.entries, k)
			s.used -= e.Size
		}
	}
	return nil
}

func (s *SessionStore) Iterate(_ context.Context, fn func(*Entry) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if !fn(e.Clone()) {
			return nil
		}
	}
	return nil
}

func (s *SessionStore) Used() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
