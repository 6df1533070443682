package warmup

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// KeyLoader pairs a key with the loader that can produce its value.
type KeyLoader struct {
	Key  string
	Load Loader
}

// Prefetcher speculatively populates the cache. Keys already cached are
// skipped; a small ristretto memo remembers recent presence checks so large
// prefetch batches don't probe every tier per key.
type Prefetcher struct {
	log     *slog.Logger
	limit   int
	limiter *rate.Limiter
	memoTTL time.Duration
	seen    *ristretto.Cache[string, struct{}]
}

// NewPrefetcher creates a prefetcher. concurrency bounds parallel loaders;
// limiter may be nil; memoTTL bounds how long a presence check is trusted.
func NewPrefetcher(log *slog.Logger, concurrency int, limiter *rate.Limiter, memoTTL time.Duration) (*Prefetcher, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	seen, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Prefetcher{
		log:     log,
		limit:   concurrency,
		limiter: limiter,
		memoTTL: memoTTL,
		seen:    seen,
	}, nil
}

// Run prefetches the given pairs. cached reports whether a key is already
// present; store writes a loaded payload with the prefetch policy (the
// manager caps priority at normal and doubles the TTL so prefetched data is
// evicted before explicitly requested data).
func (p *Prefetcher) Run(ctx context.Context, pairs []KeyLoader, cached func(ctx context.Context, key string) bool, store func(ctx context.Context, key string, val []byte) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for _, kl := range pairs {
		g.Go(func() error {
			if _, ok := p.seen.Get(kl.Key); ok {
				return nil
			}
			if cached(ctx, kl.Key) {
				p.markSeen(kl.Key)
				return nil
			}
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			val, err := kl.Load(ctx, kl.Key)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Warn("prefetch loader failed, skipping", "key", kl.Key, "err", err)
				return nil
			}
			if err := store(ctx, kl.Key, val); err != nil {
				p.log.Warn("prefetch store failed", "key", kl.Key, "err", err)
				return nil
			}
			p.markSeen(kl.Key)
			return nil
		})
	}
	return g.Wait()
}

func (p *Prefetcher) markSeen(key string) {
	p.seen.SetWithTTL(key, struct{}{}, 1, p.memoTTL)
}

// Close releases the memo cache.
func (p *Prefetcher) Close() {
	p.seen.Close()
}
