// Package warmup populates the cache ahead of need: a warmup pass runs a
// fixed task list at startup, and a prefetcher speculatively loads keys in
// bounded-concurrency batches. Loader failures are logged and skipped; they
// are never fatal.
package warmup

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Keksclan/tiercache/retry"
	"github.com/Keksclan/tiercache/tier"
)

// Loader fetches the authoritative value for a key from an external
// collaborator (profile service, configuration service, ...).
type Loader func(ctx context.Context, key string) ([]byte, error)

// Task describes one warmup item.
type Task struct {
	Key      string
	Load     Loader
	Category string
	Priority tier.Priority
}

// StoreFunc writes a loaded payload into the cache. The manager supplies an
// implementation that applies the warmup TTL policy.
type StoreFunc func(ctx context.Context, task Task, val []byte) error

// Runner executes warmup tasks with bounded concurrency and optional loader
// rate limiting.
type Runner struct {
	log     *slog.Logger
	limit   int
	limiter *rate.Limiter
	retry   retry.Config
}

// NewRunner creates a warmup runner. concurrency bounds parallel loaders
// (values < 1 mean 1). limiter may be nil to disable rate limiting;
// retryCfg with MaxAttempts ≤ 1 disables loader retries.
func NewRunner(log *slog.Logger, concurrency int, limiter *rate.Limiter, retryCfg retry.Config) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{log: log, limit: concurrency, limiter: limiter, retry: retryCfg}
}

// Run executes every task, writing successful loads via store. A failing
// loader is logged and skipped. The only returned error is a cancelled
// context.
func (r *Runner) Run(ctx context.Context, tasks []Task, store StoreFunc) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)

	for _, t := range tasks {
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			val, err := retry.Do(ctx, r.retry, func(ctx context.Context) ([]byte, error) {
				return t.Load(ctx, t.Key)
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Warn("warmup loader failed, skipping", "key", t.Key, "err", err)
				return nil
			}
			if err := store(ctx, t, val); err != nil {
				r.log.Warn("warmup store failed", "key", t.Key, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}
