package tiercache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Keksclan/tiercache/breaker"
	"github.com/Keksclan/tiercache/codec"
	"github.com/Keksclan/tiercache/internal/core"
	"github.com/Keksclan/tiercache/stats"
	"github.com/Keksclan/tiercache/tier"
	"github.com/Keksclan/tiercache/tracing"
	"github.com/Keksclan/tiercache/warmup"
)

// Errors surfaced by the Manager. Tier-internal failures are isolated and
// logged; the only errors callers see besides these are invalid arguments.
var (
	// ErrNotFound is the normal negative result of Get.
	ErrNotFound = tier.ErrNotFound
)

var errCompressTimeout = errors.New("tiercache: compression timed out")

// GetOptions tunes a single Get call. The zero value probes every tier and
// decodes the payload.
type GetOptions struct {
	// Tiers restricts the probe to the given kinds (still fastest-first).
	// Nil probes every configured tier.
	Tiers []tier.Kind

	// Category labels the emitted hit/miss events. Lookups are by key
	// alone; the category tag on the stored entry does not have to match.
	Category string

	// NoDecrypt returns the stored bytes as-is, skipping the decryption
	// and decompression stages.
	NoDecrypt bool
}

// CompressMode selects the compression behaviour for one Set call.
type CompressMode uint8

const (
	// CompressAuto compresses when Config.EnableCompression is set and the
	// payload exceeds Config.CompressionThreshold.
	CompressAuto CompressMode = iota
	// CompressOn forces compression regardless of size.
	CompressOn
	// CompressOff disables compression for this entry.
	CompressOff
)

// SetOptions tunes a single Set call. The zero value stores with the
// default TTL, the "default" category, normal priority, automatic
// compression, no encryption, and replication to every strategy-selected
// tier.
type SetOptions struct {
	TTL      time.Duration
	Category string
	Priority tier.Priority
	Compress CompressMode

	// Encrypt runs the payload through the encryption stage. Requires
	// Config.EnableEncryption or WithEncryptor.
	Encrypt bool

	// Persistent guarantees at least one durable backing write, making the
	// fast tiers a cache of the durable record rather than the sole copy.
	Persistent bool

	// NoReplicate restricts the write to the fastest strategy-selected
	// tier instead of fanning out to all of them.
	NoReplicate bool
}

// Manager orchestrates tier selection, the codec pipeline, promotion,
// eviction and warmup across the configured storage tiers. Construct it
// with New and pass it to consumers explicitly; there is no package-level
// instance.
type Manager struct {
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
	tr   *tracing.Config
	reg  prometheus.Registerer
	comp codec.Compressor
	enc  codec.Encryptor

	tiers    []tier.Tier // fastest → slowest
	byKind   map[tier.Kind]tier.Tier
	breakers map[tier.Kind]*breaker.Breaker

	stats  *stats.Collector
	events *core.Registry[EventType, Handler]

	warm *warmup.Runner
	pre  *warmup.Prefetcher

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a Manager from cfg (unset fields take DefaultConfig values)
// and the given options. The memory and session tiers always exist; durable
// tiers exist only when wired via WithRedis, WithBolt or WithTier.
func New(cfg Config, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := settings{
		logger: slog.New(slog.DiscardHandler),
		breakerCfg: breaker.Config{
			FailureThreshold:   5,
			OpenTimeout:        30 * time.Second,
			HalfOpenMaxSuccess: 2,
		},
	}
	for _, o := range opts {
		o(&s)
	}

	m := &Manager{
		cfg:      cfg,
		log:      s.logger,
		now:      time.Now,
		tr:       s.trace,
		reg:      s.registerer,
		byKind:   make(map[tier.Kind]tier.Tier),
		breakers: make(map[tier.Kind]*breaker.Breaker),
		stats:    stats.NewCollector(s.registerer),
		events:   core.NewRegistry[EventType, Handler](),
		done:     make(chan struct{}),
	}

	m.comp = s.compressor
	if m.comp == nil {
		m.comp = codec.S2{}
	}
	m.enc = s.encryptor
	if m.enc == nil && cfg.EnableEncryption {
		if cfg.EncryptionKeyPath == "" {
			return nil, errors.New("tiercache: EnableEncryption requires EncryptionKeyPath or WithEncryptor")
		}
		key, err := codec.LoadOrCreateKey(cfg.EncryptionKeyPath)
		if err != nil {
			return nil, fmt.Errorf("tiercache: %w", err)
		}
		if m.enc, err = codec.NewAESGCM(key); err != nil {
			return nil, fmt.Errorf("tiercache: %w", err)
		}
	}

	if s.boltPath != "" {
		bt, err := tier.NewBolt(s.boltPath, cfg.MaxDurableSize)
		if err != nil {
			return nil, fmt.Errorf("tiercache: %w", err)
		}
		s.tiers = append(s.tiers, bt)
	}
	for _, t := range s.tiers {
		if _, dup := m.byKind[t.Kind()]; dup {
			return nil, fmt.Errorf("tiercache: duplicate %s tier", t.Kind())
		}
		m.byKind[t.Kind()] = t
	}
	if _, ok := m.byKind[tier.KindMemory]; !ok {
		m.byKind[tier.KindMemory] = tier.NewMemory(cfg.MaxMemorySize)
	}
	if _, ok := m.byKind[tier.KindSession]; !ok {
		m.byKind[tier.KindSession] = tier.NewSession(cfg.MaxSessionSize)
	}
	for _, k := range tier.Kinds {
		t, ok := m.byKind[k]
		if !ok {
			continue
		}
		m.tiers = append(m.tiers, t)
		if k == tier.KindDurableKV || k == tier.KindDurableStructured {
			m.breakers[k] = breaker.New(s.breakerCfg)
		}
	}
	m.wireEvictCallbacks()

	var limiter *rate.Limiter
	if cfg.LoaderRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LoaderRPS), cfg.LoaderBurst)
	}
	m.warm = warmup.NewRunner(m.log, cfg.WarmupConcurrency, limiter, s.loaderRetry)
	if cfg.PrefetchEnabled {
		pre, err := warmup.NewPrefetcher(m.log, cfg.PrefetchConcurrency, limiter, cfg.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("tiercache: %w", err)
		}
		m.pre = pre
	}

	if cfg.CleanupInterval > 0 || cfg.SyncInterval > 0 {
		m.wg.Add(1)
		go m.janitor()
	}
	if cfg.CacheWarmingEnabled && len(s.warmupTasks) > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.Warm(context.Background(), s.warmupTasks...); err != nil {
				m.log.Warn("startup warmup aborted", "err", err)
			}
		}()
	}
	return m, nil
}

// wireEvictCallbacks connects tier-internal evictions to stats and events.
func (m *Manager) wireEvictCallbacks() {
	onEvict := func(tierName string) func(*tier.Entry) {
		return func(e *tier.Entry) {
			m.stats.Eviction(1)
			m.emit(Event{Type: EventEvict, Key: e.Key, Category: e.Category, Tier: tierName})
		}
	}
	if mem, ok := m.byKind[tier.KindMemory].(*tier.Memory); ok {
		mem.SetOnEvict(onEvict(tier.KindMemory.String()))
	}
	if sess, ok := m.byKind[tier.KindSession].(*tier.SessionStore); ok {
		sess.SetOnEvict(onEvict(tier.KindSession.String()))
	}
}

// Get returns the value stored under key, probing tiers fastest to slowest.
// Expired entries encountered along the way are deleted lazily. A hit from
// a slower tier is promoted into the faster tiers, capacity permitting.
func (m *Manager) Get(ctx context.Context, key string, opts *GetOptions) ([]byte, error) {
	if key == "" {
		return nil, errors.New("tiercache: empty key")
	}
	var o GetOptions
	if opts != nil {
		o = *opts
	}

	ctx, span := tracing.Start(ctx, m.tr, "cache.get", tracing.Key(key))
	now := m.now()

	for i, t := range m.probeSet(o.Tiers) {
		name := t.Kind().String()

		e, err := m.tierGet(ctx, t, key)
		switch {
		case err == nil:
		case errors.Is(err, tier.ErrNotFound):
			m.stats.RecordProbe(t.Kind(), false)
			continue
		default:
			m.stats.RecordProbe(t.Kind(), false)
			m.tierFailure(key, name, "read", err)
			continue
		}

		if e.Expired(now) {
			// Lazy expiry: the first access after the TTL elapses removes
			// the entry from the tier it was found in.
			_ = t.Delete(ctx, key)
			m.stats.RecordProbe(t.Kind(), false)
			m.stats.Expiration(1)
			m.emit(Event{Type: EventExpire, Key: key, Category: e.Category, Tier: name})
			continue
		}

		payload, derr := m.decode(e, o.NoDecrypt)
		if derr != nil {
			// Fails closed: an unreadable payload is a miss, never raw
			// ciphertext.
			m.stats.RecordProbe(t.Kind(), false)
			m.tierFailure(key, name, "decode", derr)
			continue
		}

		m.stats.RecordProbe(t.Kind(), true)
		m.stats.Hit()
		m.emit(Event{Type: EventHit, Key: key, Category: e.Category, Tier: name})
		if i > 0 {
			m.promote(ctx, e, m.probeSet(o.Tiers)[:i])
		}
		span.SetAttributes(tracing.Hit(true), tracing.TierName(name))
		tracing.End(span, nil)
		return payload, nil
	}

	m.stats.Miss()
	m.emit(Event{Type: EventMiss, Key: key, Category: o.Category})
	span.SetAttributes(tracing.Hit(false))
	tracing.End(span, nil)
	return nil, ErrNotFound
}

// Set stores the value under key in every tier the storage strategy selects
// for it. Per-tier failures are isolated: a full tier gets one eviction
// pass and one retry, a failing tier is skipped and logged. Set only fails
// on invalid arguments.
func (m *Manager) Set(ctx context.Context, key string, val []byte, opts *SetOptions) error {
	if key == "" {
		return errors.New("tiercache: empty key")
	}
	var o SetOptions
	if opts != nil {
		o = *opts
	}
	if o.TTL < 0 {
		return fmt.Errorf("tiercache: negative TTL %v", o.TTL)
	}
	if o.TTL == 0 {
		o.TTL = m.cfg.DefaultTTL
	}
	if o.Category == "" {
		o.Category = DefaultCategory
	}
	if o.Priority == 0 {
		o.Priority = tier.Normal
	}

	ctx, span := tracing.Start(ctx, m.tr, "cache.set", tracing.Key(key))
	defer tracing.End(span, nil)

	now := m.now()
	e := &tier.Entry{
		Key:          key,
		Payload:      bytes.Clone(val),
		Category:     o.Category,
		Priority:     o.Priority,
		CreatedAt:    now,
		ExpiresAt:    now.Add(o.TTL),
		AccessedAt:   now,
		Size:         int64(len(val)),
		OriginalSize: int64(len(val)),
	}
	m.encode(ctx, e, o)

	targets := m.available(selectKinds(e.OriginalSize, o.Priority, o.Category, o.Persistent, m.cfg.LargeObjectThreshold))
	if o.NoReplicate && len(targets) > 1 {
		targets = targets[:1]
	}

	if len(targets) == 0 {
		m.log.Warn("no configured tier accepts this entry", "key", key, "category", o.Category, "size", e.OriginalSize)
	}
	var wrote int
	for _, t := range targets {
		if err := m.writeTier(ctx, t, e.Clone()); err != nil {
			m.tierFailure(key, t.Kind().String(), "write", err)
			continue
		}
		wrote++
	}
	if wrote == 0 && len(targets) > 0 {
		m.log.Warn("set stored in no tier", "key", key, "category", o.Category)
	}

	m.stats.Set()
	m.emit(Event{Type: EventSet, Key: key, Category: o.Category})
	return nil
}

// Delete removes key from every tier. Deleting an absent key is a no-op.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("tiercache: empty key")
	}
	ctx, span := tracing.Start(ctx, m.tr, "cache.delete", tracing.Key(key))
	defer tracing.End(span, nil)

	for _, t := range m.tiers {
		if err := m.guard(t, func() error { return t.Delete(ctx, key) }); err != nil {
			m.tierFailure(key, t.Kind().String(), "delete", err)
		}
	}
	m.stats.Delete()
	m.emit(Event{Type: EventDelete, Key: key})
	return nil
}

// Clear wipes the given category from every tier, or everything when
// category is empty.
func (m *Manager) Clear(ctx context.Context, category string) error {
	ctx, span := tracing.Start(ctx, m.tr, "cache.clear")
	defer tracing.End(span, nil)

	for _, t := range m.tiers {
		if err := m.guard(t, func() error { return t.Clear(ctx, category) }); err != nil {
			m.tierFailure("", t.Kind().String(), "clear", err)
		}
	}
	m.emit(Event{Type: EventClear, Category: category})
	return nil
}

// Warm runs the given warmup tasks with bounded concurrency, storing each
// loaded value with three times the default TTL. Loader failures are logged
// and skipped; Warm only fails when the context is cancelled.
func (m *Manager) Warm(ctx context.Context, tasks ...warmup.Task) error {
	err := m.warm.Run(ctx, tasks, func(ctx context.Context, t warmup.Task, val []byte) error {
		return m.Set(ctx, t.Key, val, &SetOptions{
			TTL:      3 * m.cfg.DefaultTTL,
			Category: t.Category,
			Priority: t.Priority,
		})
	})
	m.emit(Event{Type: EventWarmup})
	return err
}

// Prefetch speculatively loads and stores the given keys in bounded
// concurrency batches, skipping keys already cached. Prefetched entries use
// the "prefetch" category, twice the default TTL and normal priority, so
// they are evicted before explicitly requested data. A no-op unless
// Config.PrefetchEnabled is set.
func (m *Manager) Prefetch(ctx context.Context, pairs []warmup.KeyLoader) error {
	if m.pre == nil {
		m.log.Debug("prefetch disabled, ignoring request", "keys", len(pairs))
		return nil
	}
	return m.pre.Run(ctx, pairs, m.has, func(ctx context.Context, key string, val []byte) error {
		return m.Set(ctx, key, val, &SetOptions{
			TTL:      2 * m.cfg.DefaultTTL,
			Category: PrefetchCategory,
			Priority: tier.Normal,
		})
	})
}

// Subscribe registers a handler for the given event type (EventAll for
// every event). Handlers cannot be removed.
func (m *Manager) Subscribe(t EventType, h Handler) {
	m.events.Add(t, h)
}

// Stats returns a point-in-time snapshot of the cache counters and per-tier
// usage estimates.
func (m *Manager) Stats() stats.Snapshot {
	m.refreshUsage()
	return m.stats.Snapshot()
}

// HealthReport derives the current health status from the stats snapshot
// and the memory tier footprint.
func (m *Manager) HealthReport() stats.HealthReport {
	snap := m.Stats()
	var used int64
	if mem, ok := m.byKind[tier.KindMemory]; ok {
		used = mem.Used()
	}
	return stats.Evaluate(snap, used, m.cfg.MaxMemorySize)
}

// MetricsHandler returns an http.Handler serving Prometheus metrics. When a
// gatherer was supplied via WithMetrics it is served; otherwise the default
// registry is.
func (m *Manager) MetricsHandler() http.Handler {
	if g, ok := m.reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Close stops the janitor and releases tier resources. Safe to call more
// than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		if m.pre != nil {
			m.pre.Close()
		}
		var errs []error
		for _, t := range m.tiers {
			if c, ok := t.(tier.Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, fmt.Errorf("close %s tier: %w", t.Kind(), err))
				}
			}
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

// probeSet returns the tiers to probe, fastest first, optionally restricted
// to the given kinds.
func (m *Manager) probeSet(kinds []tier.Kind) []tier.Tier {
	if kinds == nil {
		return m.tiers
	}
	return m.available(kinds)
}

// available maps tier kinds to configured tiers, preserving fastest-first
// order and dropping kinds without a backend in this runtime.
func (m *Manager) available(kinds []tier.Kind) []tier.Tier {
	out := make([]tier.Tier, 0, len(kinds))
	for _, k := range tier.Kinds {
		if !containsKind(kinds, k) {
			continue
		}
		if t, ok := m.byKind[k]; ok {
			out = append(out, t)
		}
	}
	return out
}

func containsKind(kinds []tier.Kind, k tier.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// tierGet reads from one tier through its circuit breaker, when it has one.
// ErrNotFound never counts as a backend failure.
func (m *Manager) tierGet(ctx context.Context, t tier.Tier, key string) (*tier.Entry, error) {
	br := m.breakers[t.Kind()]
	if br == nil {
		return t.Get(ctx, key)
	}
	if !br.Allow() {
		return nil, fmt.Errorf("%w: circuit open", tier.ErrUnavailable)
	}
	e, err := t.Get(ctx, key)
	if err != nil && !errors.Is(err, tier.ErrNotFound) {
		br.OnFailure()
	} else {
		br.OnSuccess()
	}
	return e, err
}

// guard runs fn through the tier's circuit breaker. Quota rejections do not
// count as backend failures: the backend answered, it is merely full.
func (m *Manager) guard(t tier.Tier, fn func() error) error {
	br := m.breakers[t.Kind()]
	if br == nil {
		return fn()
	}
	if !br.Allow() {
		return fmt.Errorf("%w: circuit open", tier.ErrUnavailable)
	}
	err := fn()
	if err != nil && !errors.Is(err, tier.ErrQuotaExceeded) {
		br.OnFailure()
	} else {
		br.OnSuccess()
	}
	return err
}

// writeTier stores the entry in one tier. A quota rejection triggers one
// eviction pass on that tier and one retry; any remaining failure is
// returned for the caller to log and skip.
func (m *Manager) writeTier(ctx context.Context, t tier.Tier, e *tier.Entry) error {
	err := m.guard(t, func() error { return t.Set(ctx, e) })
	if !errors.Is(err, tier.ErrQuotaExceeded) {
		return err
	}
	ev, ok := t.(tier.Evicter)
	if !ok {
		return err
	}
	if _, err := ev.Evict(ctx); err != nil {
		return fmt.Errorf("evict before retry: %w", err)
	}
	return m.guard(t, func() error { return t.Set(ctx, e) })
}

// promote copies a hit into the faster tiers that preceded its source in
// the probe order. Promotion is opportunistic: a full tier is simply
// skipped, no eviction is forced.
func (m *Manager) promote(ctx context.Context, e *tier.Entry, faster []tier.Tier) {
	for _, t := range faster {
		err := m.guard(t, func() error { return t.Set(ctx, e.Clone()) })
		if err != nil {
			m.log.Debug("promotion skipped", "key", e.Key, "tier", t.Kind().String(), "err", err)
		}
	}
}

// encode applies the codec pipeline to the entry in place: compression
// first (so ciphertext never destroys compressibility), then encryption.
// Codec failures degrade to the raw payload with a warning; they never fail
// the write.
func (m *Manager) encode(ctx context.Context, e *tier.Entry, o SetOptions) {
	compress := o.Compress == CompressOn ||
		(o.Compress == CompressAuto && m.cfg.EnableCompression && e.Size > m.cfg.CompressionThreshold)
	if compress {
		comp, err := m.compressWithTimeout(ctx, e.Payload)
		switch {
		case err != nil:
			m.log.Warn("compression failed, storing raw payload", "key", e.Key, "err", err)
			m.stats.Error()
		case int64(len(comp)) < e.Size:
			m.stats.CompressionSaved(e.Size - int64(len(comp)))
			e.Payload = comp
			e.Compressed = true
			e.Size = int64(len(comp))
		}
	}

	if !o.Encrypt {
		return
	}
	if m.enc == nil {
		m.log.Warn("encryption requested but no encryptor configured, storing raw payload", "key", e.Key)
		m.stats.Error()
		return
	}
	ct, err := m.enc.Encrypt(e.Payload)
	if err != nil {
		m.log.Warn("encryption failed, storing raw payload", "key", e.Key, "err", err)
		m.stats.Error()
		return
	}
	e.Payload = ct
	e.Encrypted = true
	e.Size = int64(len(ct))
}

// decode reverses the codec pipeline: decryption first, then
// decompression.
func (m *Manager) decode(e *tier.Entry, noDecrypt bool) ([]byte, error) {
	payload := e.Payload
	if noDecrypt {
		return payload, nil
	}
	if e.Encrypted {
		if m.enc == nil {
			return nil, fmt.Errorf("entry %q: %w", e.Key, codec.ErrDecrypt)
		}
		p, err := m.enc.Decrypt(payload)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Key, err)
		}
		payload = p
	}
	if e.Compressed {
		p, err := m.comp.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Key, err)
		}
		payload = p
	}
	return payload, nil
}

// compressWithTimeout bounds one compression round-trip. The abandoned
// goroutine finishes in the background; its result is discarded.
func (m *Manager) compressWithTimeout(ctx context.Context, p []byte) ([]byte, error) {
	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := m.comp.Compress(p)
		ch <- result{b, err}
	}()

	timer := time.NewTimer(m.cfg.CompressionTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.b, r.err
	case <-timer.C:
		return nil, errCompressTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// has reports whether key is cached, fresh, in any tier. Used by the
// prefetcher; unlike Get it records no hit/miss statistics.
func (m *Manager) has(ctx context.Context, key string) bool {
	now := m.now()
	for _, t := range m.tiers {
		e, err := m.tierGet(ctx, t, key)
		if err == nil && !e.Expired(now) {
			return true
		}
	}
	return false
}

// tierFailure records an isolated tier-level failure.
func (m *Manager) tierFailure(key, tierName, op string, err error) {
	m.stats.Error()
	m.log.Warn("tier "+op+" failed, skipping tier", "key", key, "tier", tierName, "err", err)
	m.emit(Event{Type: EventError, Key: key, Tier: tierName, Err: err})
}

// emit dispatches an event to its subscribers and to EventAll subscribers.
func (m *Manager) emit(e Event) {
	if e.At.IsZero() {
		e.At = m.now()
	}
	for _, h := range m.events.Get(e.Type) {
		h(e)
	}
	for _, h := range m.events.Get(EventAll) {
		h(e)
	}
}

// refreshUsage pushes current tier footprints into the collector.
func (m *Manager) refreshUsage() {
	for _, t := range m.tiers {
		m.stats.SetUsage(t.Kind(), stats.Usage{Bytes: t.Used(), Entries: t.Len()})
	}
}

// janitor periodically sweeps expired entries from sweepable tiers and
// emits the sync lifecycle event.
func (m *Manager) janitor() {
	defer m.wg.Done()

	var cleanupC, syncC <-chan time.Time
	if m.cfg.CleanupInterval > 0 {
		t := time.NewTicker(m.cfg.CleanupInterval)
		defer t.Stop()
		cleanupC = t.C
	}
	if m.cfg.SyncInterval > 0 {
		t := time.NewTicker(m.cfg.SyncInterval)
		defer t.Stop()
		syncC = t.C
	}

	for {
		select {
		case <-m.done:
			return
		case <-cleanupC:
			m.sweep(context.Background())
		case <-syncC:
			m.emit(Event{Type: EventSync})
		}
	}
}

// sweep removes expired entries from every sweepable tier.
func (m *Manager) sweep(ctx context.Context) {
	now := m.now()
	for _, t := range m.tiers {
		sw, ok := t.(tier.Sweeper)
		if !ok {
			continue
		}
		n, err := sw.Sweep(ctx, now)
		if err != nil {
			m.tierFailure("", t.Kind().String(), "sweep", err)
			continue
		}
		if n > 0 {
			m.stats.Expiration(n)
			m.emit(Event{Type: EventExpire, Tier: t.Kind().String()})
		}
		if bt, ok := t.(*tier.Bolt); ok {
			if err := bt.SetMeta("last_sweep", []byte(now.Format(time.RFC3339Nano))); err != nil {
				m.log.Debug("recording sweep time failed", "err", err)
			}
		}
	}
	m.refreshUsage()
}
