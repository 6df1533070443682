package tier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces cache entries inside a shared Redis database.
const keyPrefix = "tiercache:"

// Redis is the durable key-value tier, backed by a Redis server. Entries are
// stored as JSON with the TTL mapped onto Redis key expiration, so expired
// entries vanish server-side without a sweep.
//
// Connection failures surface as ErrUnavailable so the manager can trip the
// tier's circuit breaker and skip it; they are never fatal to an operation.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a Redis-backed tier.
func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{rdb: rdb}
}

func (r *Redis) Kind() Kind { return KindDurableKV }

func (r *Redis) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// A corrupt record is unreadable; treat it as absent.
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *Redis) Set(ctx context.Context, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	var ttl time.Duration
	if !e.ExpiresAt.IsZero() {
		ttl = time.Until(e.ExpiresAt)
		if ttl <= 0 {
			// Already expired; nothing to store.
			return nil
		}
	}
	if err := r.rdb.Set(ctx, keyPrefix+e.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, category string) error {
	iter := r.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if category != "" {
			raw, err := r.rdb.Get(ctx, k).Bytes()
			if err != nil {
				continue
			}
			var e Entry
			if json.Unmarshal(raw, &e) != nil || e.Category != category {
				continue
			}
		}
		_ = r.rdb.Del(ctx, k).Err()
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Iterate(ctx context.Context, fn func(*Entry) bool) error {
	iter := r.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal(raw, &e) != nil {
			continue
		}
		if !fn(&e) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Used is not reported for Redis; memory accounting lives server-side.
func (r *Redis) Used() int64 { return 0 }

// Len is not reported for Redis; counting keys requires a full scan.
func (r *Redis) Len() int { return 0 }

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
