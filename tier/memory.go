package tier

import (
	"context"
	"sort"
	"sync"
	"time"
)

// evictTarget is the fraction of the size limit the memory tier shrinks to
// once it overflows.
const evictTarget = 0.8

// Memory is the volatile in-process tier. It tracks aggregate payload size
// and, when a write pushes usage past the configured maximum, evicts the
// oldest-accessed non-critical entries until usage is at or below 80% of the
// maximum.
type Memory struct {
	mu      sync.Mutex
	max     int64
	used    int64
	entries map[string]*Entry

	now     func() time.Time
	onEvict func(*Entry)
}

// NewMemory creates a memory tier bounded to maxBytes of payload data.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{
		max:     maxBytes,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// SetNow overrides the tier's clock. Intended for tests.
func (m *Memory) SetNow(now func() time.Time) { m.now = now }

// SetOnEvict registers a callback invoked for every entry removed to reclaim
// space. The callback runs with the tier lock held and must not call back
// into the tier.
func (m *Memory) SetOnEvict(fn func(*Entry)) { m.onEvict = fn }

func (m *Memory) Kind() Kind { return KindMemory }

func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	e.AccessedAt = m.now()
	e.AccessCount++
	return e.Clone(), nil
}

func (m *Memory) Set(_ context.Context, e *Entry) error {
	if m.max > 0 && e.Size > m.max {
		return ErrQuotaExceeded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[e.Key]; ok {
		m.used -= old.Size
	}
	c := e.Clone()
	m.entries[c.Key] = c
	m.used += c.Size

	if m.max > 0 && m.used > m.max {
		m.shrinkLocked(int64(float64(m.max) * evictTarget))
	}
	return nil
}

// shrinkLocked evicts oldest-accessed non-critical entries until usage is at
// or below target. Must be called with m.mu held.
func (m *Memory) shrinkLocked(target int64) {
	victims := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Priority == Critical {
			continue
		}
		victims = append(victims, e)
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].AccessedAt.Before(victims[j].AccessedAt)
	})

	for _, e := range victims {
		if m.used <= target {
			return
		}
		delete(m.entries, e.Key)
		m.used -= e.Size
		if m.onEvict != nil {
			m.onEvict(e)
		}
	}
}

// Evict reclaims space down to the 80% watermark regardless of current
// usage, returning the evicted keys.
func (m *Memory) Evict(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := snapshotKeys(m.entries)
	m.shrinkLocked(int64(float64(m.max) * evictTarget))
	return removedKeys(before, m.entries), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.used -= e.Size
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if category == "" {
		m.entries = make(map[string]*Entry)
		m.used = 0
		return nil
	}
	for k, e := range m.entries {
		if e.Category == category {
			delete(m.entries, k)
			m.used -= e.Size
		}
	}
	return nil
}

func (m *Memory) Iterate(_ context.Context, fn func(*Entry) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if !fn(e.Clone()) {
			return nil
		}
	}
	return nil
}

func (m *Memory) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func snapshotKeys(entries map[string]*Entry) map[string]struct{} {
	s := make(map[string]struct{}, len(entries))
	for k := range entries {
		s[k] = struct{}{}
	}
	return s
}

func removedKeys(before map[string]struct{}, after map[string]*Entry) []string {
	var gone []string
	for k := range before {
		if _, ok := after[k]; !ok {
			gone = append(gone, k)
		}
	}
	return gone
}
