package tier

import (
	"bytes"
	"time"
)

// Priority orders entries for eviction decisions. Critical entries are never
// evicted to reclaim space; they are only removed by expiry or an explicit
// delete. The zero value is "unspecified" and is normalized to Normal when
// an entry is stored.
type Priority uint8

const (
	Low Priority = iota + 1
	Normal
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Entry is the value/metadata record stored in any tier. The payload is
// opaque; when Compressed or Encrypted are set the bytes are the encoded
// form and OriginalSize records the pre-codec length.
type Entry struct {
	Key          string    `json:"key"`
	Payload      []byte    `json:"payload"`
	Category     string    `json:"category"`
	Priority     Priority  `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccessedAt   time.Time `json:"accessed_at"`
	AccessCount  int64     `json:"access_count"`
	Size         int64     `json:"size"`
	OriginalSize int64     `json:"original_size,omitempty"`
	Compressed   bool      `json:"compressed,omitempty"`
	Encrypted    bool      `json:"encrypted,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
// A zero ExpiresAt means the entry never expires.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// TTL returns the remaining lifetime at the given instant, or zero when the
// entry never expires. A negative result means the entry is already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// Clone returns a deep copy. Tiers hand out and accept clones so callers and
// storage never alias the same payload slice.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Payload = bytes.Clone(e.Payload)
	return &c
}
