package tier

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket layout of the durable structured tier. The cache bucket holds the
// entries; expiry, category and priority buckets are secondary indexes with
// composite keys pointing back at the cache key; meta holds arbitrary
// bookkeeping values.
var (
	bucketCache    = []byte("cache")
	bucketExpiry   = []byte("idx_expiry")
	bucketCategory = []byte("idx_category")
	bucketPriority = []byte("idx_priority")
	bucketMeta     = []byte("metadata")
)

// Bolt is the durable structured tier, a file-backed bbolt store with
// secondary indexes on expiry, category and priority. It never applies LRU
// pressure on its own; expired entries are removed by Sweep, which the
// manager drives on its cleanup interval.
type Bolt struct {
	db   *bolt.DB
	max  int64
	used atomic.Int64
}

// NewBolt opens (or creates) the store at path. maxBytes bounds the
// aggregate payload size; zero means unbounded.
func NewBolt(path string, maxBytes int64) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	b := &Bolt{db: db, max: maxBytes}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCache, bucketExpiry, bucketCategory, bucketPriority, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		// Rebuild the usage counter from what survived the last run.
		var used int64
		err := tx.Bucket(bucketCache).ForEach(func(_, raw []byte) error {
			var e Entry
			if json.Unmarshal(raw, &e) == nil {
				used += e.Size
			}
			return nil
		})
		b.used.Store(used)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt store: %w", err)
	}
	return b, nil
}

func (b *Bolt) Kind() Kind { return KindDurableStructured }

func (b *Bolt) Get(_ context.Context, key string) (*Entry, error) {
	var e *Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCache).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		var dec Entry
		if err := json.Unmarshal(raw, &dec); err != nil {
			return ErrNotFound
		}
		e = &dec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (b *Bolt) Set(_ context.Context, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		cache := tx.Bucket(bucketCache)

		var oldSize int64
		if old := cache.Get([]byte(e.Key)); old != nil {
			var prev Entry
			if json.Unmarshal(old, &prev) == nil {
				oldSize = prev.Size
				if err := deleteIndexes(tx, &prev); err != nil {
					return err
				}
			}
		}
		if b.max > 0 && b.used.Load()-oldSize+e.Size > b.max {
			return ErrQuotaExceeded
		}

		if err := cache.Put([]byte(e.Key), raw); err != nil {
			return err
		}
		if err := putIndexes(tx, e); err != nil {
			return err
		}
		b.used.Add(e.Size - oldSize)
		return nil
	})
	return err
}

func (b *Bolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.deleteLocked(tx, key)
	})
}

func (b *Bolt) deleteLocked(tx *bolt.Tx, key string) error {
	cache := tx.Bucket(bucketCache)
	raw := cache.Get([]byte(key))
	if raw == nil {
		return nil
	}
	var e Entry
	if json.Unmarshal(raw, &e) == nil {
		if err := deleteIndexes(tx, &e); err != nil {
			return err
		}
		b.used.Add(-e.Size)
	}
	return cache.Delete([]byte(key))
}

func (b *Bolt) Clear(_ context.Context, category string) error {
	if category == "" {
		return b.db.Update(func(tx *bolt.Tx) error {
			for _, name := range [][]byte{bucketCache, bucketExpiry, bucketCategory, bucketPriority} {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
				if _, err := tx.CreateBucket(name); err != nil {
					return err
				}
			}
			b.used.Store(0)
			return nil
		})
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		prefix := append([]byte(category), 0)
		c := tx.Bucket(bucketCategory).Cursor()
		var keys []string
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, string(k[len(prefix):]))
		}
		for _, key := range keys {
			if err := b.deleteLocked(tx, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Sweep deletes every entry whose expiry is at or before now, walking the
// expiry index instead of the full table. It returns the number of entries
// removed.
func (b *Bolt) Sweep(_ context.Context, now time.Time) (int, error) {
	var removed int
	err := b.db.Update(func(tx *bolt.Tx) error {
		cutoff := make([]byte, 8)
		binary.BigEndian.PutUint64(cutoff, uint64(now.UnixNano()))

		c := tx.Bucket(bucketExpiry).Cursor()
		var keys []string
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], cutoff) <= 0; k, _ = c.Next() {
			keys = append(keys, string(k[8:]))
		}
		for _, key := range keys {
			if err := b.deleteLocked(tx, key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Evict reclaims space by sweeping expired entries. The structured tier
// applies no LRU pressure; expiry is the only space-motivated removal.
func (b *Bolt) Evict(ctx context.Context) ([]string, error) {
	n, err := b.Sweep(ctx, time.Now())
	if err != nil || n == 0 {
		return nil, err
	}
	// Keys are not tracked through the sweep path; callers only need the
	// count, which Sweep reports via stats.
	return nil, nil
}

func (b *Bolt) Iterate(_ context.Context, fn func(*Entry) bool) error {
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).ForEach(func(_, raw []byte) error {
			var e Entry
			if json.Unmarshal(raw, &e) != nil {
				return nil
			}
			if !fn(&e) {
				return errStopIteration
			}
			return nil
		})
	})
	if err == errStopIteration {
		return nil
	}
	return err
}

var errStopIteration = fmt.Errorf("stop iteration")

func (b *Bolt) Used() int64 { return b.used.Load() }

func (b *Bolt) Len() int {
	var n int
	_ = b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketCache).Stats().KeyN
		return nil
	})
	return n
}

// Meta returns the bookkeeping value stored under key, or nil when absent.
func (b *Bolt) Meta(key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		val = bytes.Clone(tx.Bucket(bucketMeta).Get([]byte(key)))
		return nil
	})
	return val, err
}

// SetMeta stores a bookkeeping value under key.
func (b *Bolt) SetMeta(key string, val []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), val)
	})
}

// Close closes the underlying bbolt database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func putIndexes(tx *bolt.Tx, e *Entry) error {
	if !e.ExpiresAt.IsZero() {
		if err := tx.Bucket(bucketExpiry).Put(expiryKey(e), nil); err != nil {
			return err
		}
	}
	if err := tx.Bucket(bucketCategory).Put(categoryKey(e), nil); err != nil {
		return err
	}
	return tx.Bucket(bucketPriority).Put(priorityKey(e), nil)
}

func deleteIndexes(tx *bolt.Tx, e *Entry) error {
	if !e.ExpiresAt.IsZero() {
		if err := tx.Bucket(bucketExpiry).Delete(expiryKey(e)); err != nil {
			return err
		}
	}
	if err := tx.Bucket(bucketCategory).Delete(categoryKey(e)); err != nil {
		return err
	}
	return tx.Bucket(bucketPriority).Delete(priorityKey(e))
}

// expiryKey is 8 bytes of big-endian UnixNano followed by the cache key, so
// a cursor walks entries in expiry order.
func expiryKey(e *Entry) []byte {
	k := make([]byte, 8+len(e.Key))
	binary.BigEndian.PutUint64(k, uint64(e.ExpiresAt.UnixNano()))
	copy(k[8:], e.Key)
	return k
}

// categoryKey is the category, a NUL separator, then the cache key.
func categoryKey(e *Entry) []byte {
	k := make([]byte, 0, len(e.Category)+1+len(e.Key))
	k = append(k, e.Category...)
	k = append(k, 0)
	return append(k, e.Key...)
}

// priorityKey is one priority byte followed by the cache key.
func priorityKey(e *Entry) []byte {
	k := make([]byte, 0, 1+len(e.Key))
	k = append(k, byte(e.Priority))
	return append(k, e.Key...)
}
