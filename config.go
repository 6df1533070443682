package tiercache

import (
	"fmt"
	"time"
)

// Config holds the recognized cache configuration. The zero value is usable:
// New fills every unset field from DefaultConfig. Fields mirror the knobs a
// deployment is expected to tune; everything structural (which backends
// exist, codecs, tracing) is wired through functional options instead.
type Config struct {
	// DefaultTTL applies to entries stored without an explicit TTL. Warmup
	// writes use 3× this value, prefetch writes 2×.
	DefaultTTL time.Duration

	// MaxMemorySize bounds the memory tier's aggregate payload bytes. When
	// a write pushes usage past it, oldest-accessed non-critical entries
	// are evicted until usage is at or below 80% of the maximum.
	MaxMemorySize int64

	// MaxSessionSize is the session tier's byte quota. Writes beyond the
	// quota fail; one eviction pass (oldest 25%) and one retry follow.
	MaxSessionSize int64

	// MaxDurableSize bounds the durable structured tier. It is enforced as
	// a quota; the tier itself never applies LRU pressure.
	MaxDurableSize int64

	// LargeObjectThreshold routes payloads above this size away from the
	// quota-limited tiers and into the durable structured tier only.
	LargeObjectThreshold int64

	// CompressionThreshold is the minimum payload size, in bytes, for the
	// compression stage to run.
	CompressionThreshold int64

	// CompressionTimeout bounds one compression round-trip; on timeout the
	// raw payload is stored.
	CompressionTimeout time.Duration

	// EnableCompression turns the compression stage on for Set calls with
	// CompressAuto.
	EnableCompression bool

	// EnableEncryption makes the encryption stage available. Unless an
	// Encryptor is injected via WithEncryptor, EncryptionKeyPath must point
	// at the per-installation key file (created on first use).
	EnableEncryption  bool
	EncryptionKeyPath string

	// SyncInterval is the period of the sync lifecycle event; external
	// subscribers implement the actual sync protocol. Zero disables it.
	SyncInterval time.Duration

	// CleanupInterval is the period of the expired-entry sweep on the
	// durable structured tier. Zero selects the default; a negative value
	// disables the sweep.
	CleanupInterval time.Duration

	// PrefetchEnabled gates Prefetch; when false, Prefetch is a no-op.
	PrefetchEnabled bool

	// CacheWarmingEnabled runs the tasks registered via WithWarmupTasks in
	// the background when the manager is created.
	CacheWarmingEnabled bool

	// WarmupConcurrency and PrefetchConcurrency bound parallel loader
	// calls.
	WarmupConcurrency   int
	PrefetchConcurrency int

	// LoaderRPS and LoaderBurst rate-limit warmup/prefetch loader calls.
	// Zero RPS disables rate limiting.
	LoaderRPS   float64
	LoaderBurst int
}

// withDefaults returns a copy with unset fields filled from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultTTL == 0 {
		c.DefaultTTL = d.DefaultTTL
	}
	if c.MaxMemorySize == 0 {
		c.MaxMemorySize = d.MaxMemorySize
	}
	if c.MaxSessionSize == 0 {
		c.MaxSessionSize = d.MaxSessionSize
	}
	if c.MaxDurableSize == 0 {
		c.MaxDurableSize = d.MaxDurableSize
	}
	if c.LargeObjectThreshold == 0 {
		c.LargeObjectThreshold = d.LargeObjectThreshold
	}
	if c.CompressionThreshold == 0 {
		c.CompressionThreshold = d.CompressionThreshold
	}
	if c.CompressionTimeout == 0 {
		c.CompressionTimeout = d.CompressionTimeout
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.WarmupConcurrency == 0 {
		c.WarmupConcurrency = d.WarmupConcurrency
	}
	if c.PrefetchConcurrency == 0 {
		c.PrefetchConcurrency = d.PrefetchConcurrency
	}
	if c.LoaderBurst == 0 {
		c.LoaderBurst = d.LoaderBurst
	}
	return c
}

// validate rejects configurations that cannot work.
func (c Config) validate() error {
	if c.DefaultTTL < 0 {
		return fmt.Errorf("tiercache: DefaultTTL must be positive, got %v", c.DefaultTTL)
	}
	for name, v := range map[string]int64{
		"MaxMemorySize":        c.MaxMemorySize,
		"MaxSessionSize":       c.MaxSessionSize,
		"MaxDurableSize":       c.MaxDurableSize,
		"LargeObjectThreshold": c.LargeObjectThreshold,
		"CompressionThreshold": c.CompressionThreshold,
	} {
		if v < 0 {
			return fmt.Errorf("tiercache: %s must not be negative, got %d", name, v)
		}
	}
	return nil
}
