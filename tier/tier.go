// Package tier defines the storage-tier capability interface of the cache
// hierarchy and provides one adapter per backend: an in-process memory tier,
// a quota-limited session tier, a Redis-backed durable key-value tier and a
// bbolt-backed durable structured tier.
package tier

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors returned by tier implementations.
var (
	// ErrNotFound indicates the key is absent from the tier. It is a normal
	// negative result, not a failure.
	ErrNotFound = errors.New("tier: entry not found")

	// ErrQuotaExceeded indicates a write was rejected because the tier is at
	// capacity. Callers may reclaim space via Evicter and retry once.
	ErrQuotaExceeded = errors.New("tier: quota exceeded")

	// ErrUnavailable indicates the backing store cannot be reached in this
	// runtime. The tier should be skipped, never treated as fatal.
	ErrUnavailable = errors.New("tier: backend unavailable")
)

// Kind identifies a storage tier. Lower values are faster; probing and
// promotion follow Kind order.
type Kind uint8

const (
	KindMemory Kind = iota
	KindSession
	KindDurableKV
	KindDurableStructured
)

// Kinds lists all tier kinds fastest to slowest.
var Kinds = []Kind{KindMemory, KindSession, KindDurableKV, KindDurableStructured}

func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindSession:
		return "session"
	case KindDurableKV:
		return "durable-kv"
	case KindDurableStructured:
		return "durable-structured"
	default:
		return "unknown"
	}
}

// Tier is the capability contract every storage backend implements. A key is
// unique within a tier; Category is a namespace tag used for scoped clears,
// not part of the lookup key.
//
// Implementations must be safe for concurrent use. Access-time bookkeeping
// (AccessedAt, AccessCount) is best effort and may race across tiers; it
// feeds eviction heuristics only.
type Tier interface {
	// Kind reports which slot in the hierarchy this tier occupies.
	Kind() Kind

	// Get returns the entry stored under key, or ErrNotFound. Expired
	// entries are still returned; expiry is detected lazily by the caller.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores the entry, overwriting any previous entry for the same
	// key. Returns ErrQuotaExceeded when the tier is full.
	Set(ctx context.Context, e *Entry) error

	// Delete removes the entry for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry in the given category, or all entries when
	// category is empty.
	Clear(ctx context.Context, category string) error

	// Iterate calls fn for each stored entry until fn returns false.
	Iterate(ctx context.Context, fn func(*Entry) bool) error

	// Used reports the aggregate payload bytes held, best effort.
	Used() int64

	// Len reports the number of entries held, best effort.
	Len() int
}

// Evicter is implemented by tiers that can reclaim space on demand. Each
// tier applies its own policy; evicted keys are returned for bookkeeping.
// Entries with critical priority are never evicted for space, only expiry.
type Evicter interface {
	Evict(ctx context.Context) ([]string, error)
}

// Sweeper is implemented by tiers that support a bulk removal of expired
// entries, driven periodically by the manager's janitor.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Closer is a convenience alias; tiers holding external resources (client
// connections, file handles) implement it.
type Closer = io.Closer
