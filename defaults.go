package tiercache

import "time"

// Category assigned to entries stored without an explicit one, and the
// category used for prefetched entries.
const (
	DefaultCategory  = "default"
	PrefetchCategory = "prefetch"
)

// DefaultConfig returns the recommended configuration for production use.
// Every field can be overridden by setting it on the Config passed to New.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:           5 * time.Minute,
		MaxMemorySize:        64 << 20,  // 64 MiB
		MaxSessionSize:       8 << 20,   // 8 MiB
		MaxDurableSize:       512 << 20, // 512 MiB
		LargeObjectThreshold: 256 << 10, // 256 KiB
		CompressionThreshold: 4 << 10,   // 4 KiB
		CompressionTimeout:   2 * time.Second,
		EnableCompression:    true,
		CleanupInterval:      time.Minute,
		WarmupConcurrency:    4,
		PrefetchConcurrency:  8,
		LoaderBurst:          10,
	}
}
