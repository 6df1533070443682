package tiercache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Keksclan/tiercache/tier"
	"github.com/Keksclan/tiercache/warmup"
)

func newTestManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	m, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return m
}

func TestSetGetRoundtrip(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	payloads := map[string][]byte{
		"small": []byte("hello"),
		"empty": {},
		"large": bytes.Repeat([]byte("tiercache payload "), 1024), // past compression threshold
	}
	for key, want := range payloads {
		if err := m.Set(ctx, key, want, nil); err != nil {
			t.Fatalf("Set(%q): %v", key, err)
		}
		got, err := m.Get(ctx, key, nil)
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Get(%q) = %d bytes, want %d", key, len(got), len(want))
		}
	}

	if snap := m.Stats(); snap.CompressionSaved == 0 {
		t.Error("expected compression savings for the large payload")
	}
}

func TestGetMissing(t *testing.T) {
	m := newTestManager(t, Config{})

	if _, err := m.Get(t.Context(), "absent", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(absent) = %v, want ErrNotFound", err)
	}
}

func TestOverwrite(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "k", []byte("v1"), nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "k", []byte("v2"), nil); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, "k", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("Get after overwrite = %q, want %q", got, "v2")
	}
}

func TestExpiry(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "fleeting", []byte("x"), &SetOptions{TTL: time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := m.Get(ctx, "fleeting", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(expired) = %v, want ErrNotFound", err)
	}
	if snap := m.Stats(); snap.Expirations == 0 {
		t.Error("expected an expiration to be recorded")
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "k", []byte("v"), nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "k", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete = %v, want ErrNotFound", err)
	}
	// Deleting an absent key is a no-op.
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete(absent) = %v", err)
	}
}

func TestClearCategory(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "a", []byte("1"), &SetOptions{Category: "reports"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "b", []byte("2"), nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear(ctx, "reports"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Get(ctx, "a", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(a) after scoped clear = %v, want ErrNotFound", err)
	}
	if _, err := m.Get(ctx, "b", nil); err != nil {
		t.Errorf("Get(b) after scoped clear = %v, want hit", err)
	}
}

func TestInvalidArguments(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "", []byte("v"), nil); err == nil {
		t.Error("Set with empty key succeeded")
	}
	if err := m.Set(ctx, "k", []byte("v"), &SetOptions{TTL: -time.Second}); err == nil {
		t.Error("Set with negative TTL succeeded")
	}
	if _, err := m.Get(ctx, "", nil); err == nil {
		t.Error("Get with empty key succeeded")
	}
	if err := m.Delete(ctx, ""); err == nil {
		t.Error("Delete with empty key succeeded")
	}
}

func TestMemoryEvictionWatermark(t *testing.T) {
	const maxMem = 10 << 10
	m := newTestManager(t, Config{MaxMemorySize: maxMem})
	ctx := t.Context()

	payload := bytes.Repeat([]byte("x"), 1<<10)
	for i := range 11 {
		key := string(rune('a' + i))
		if err := m.Set(ctx, key, payload, &SetOptions{Compress: CompressOff}); err != nil {
			t.Fatalf("Set(%q): %v", key, err)
		}
	}

	mem := m.byKind[tier.KindMemory]
	if used := mem.Used(); used > int64(float64(maxMem)*0.8) {
		t.Errorf("memory tier holds %d bytes after overflow, want <= %d", used, int64(float64(maxMem)*0.8))
	}
	if snap := m.Stats(); snap.Evictions == 0 {
		t.Error("expected evictions to be recorded")
	}
}

func TestCriticalSurvivesEviction(t *testing.T) {
	const maxMem = 4 << 10
	m := newTestManager(t, Config{MaxMemorySize: maxMem})
	ctx := t.Context()

	payload := bytes.Repeat([]byte("x"), 1<<10)
	if err := m.Set(ctx, "keep", payload, &SetOptions{Priority: tier.Critical, Compress: CompressOff}); err != nil {
		t.Fatal(err)
	}
	for i := range 6 {
		key := "filler" + string(rune('0'+i))
		if err := m.Set(ctx, key, payload, &SetOptions{Compress: CompressOff}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := m.byKind[tier.KindMemory].Get(ctx, "keep"); err != nil {
		t.Fatalf("critical entry evicted from memory tier: %v", err)
	}
}

func TestPromotionFromDurable(t *testing.T) {
	m := newTestManager(t, Config{}, WithBolt(filepath.Join(t.TempDir(), "cache.db")))
	ctx := t.Context()

	// Seed the slowest tier directly so the fast tiers miss.
	bolt := m.byKind[tier.KindDurableStructured]
	now := time.Now()
	err := bolt.Set(ctx, &tier.Entry{
		Key:        "cold",
		Payload:    []byte("durable"),
		Category:   DefaultCategory,
		Priority:   tier.Normal,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
		AccessedAt: now,
		Size:       7,
	})
	if err != nil {
		t.Fatalf("seeding bolt tier: %v", err)
	}

	got, err := m.Get(ctx, "cold", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "durable" {
		t.Fatalf("Get = %q, want %q", got, "durable")
	}

	if _, err := m.byKind[tier.KindMemory].Get(ctx, "cold"); err != nil {
		t.Errorf("entry not promoted to memory tier: %v", err)
	}
}

func TestTierRestrictedGet(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "k", []byte("v"), nil); err != nil {
		t.Fatal(err)
	}
	// The entry lives in memory and session; a session-only probe hits.
	if _, err := m.Get(ctx, "k", &GetOptions{Tiers: []tier.Kind{tier.KindSession}}); err != nil {
		t.Errorf("session-only Get = %v, want hit", err)
	}
	// An empty (non-nil) tier set probes nothing.
	if _, err := m.Get(ctx, "k", &GetOptions{Tiers: []tier.Kind{}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty tier set Get = %v, want ErrNotFound", err)
	}
}

// failingTier simulates an unreachable durable backend.
type failingTier struct{ kind tier.Kind }

func (f *failingTier) Kind() tier.Kind { return f.kind }
func (f *failingTier) Get(context.Context, string) (*tier.Entry, error) {
	return nil, tier.ErrUnavailable
}
func (f *failingTier) Set(context.Context, *tier.Entry) error     { return tier.ErrUnavailable }
func (f *failingTier) Delete(context.Context, string) error       { return tier.ErrUnavailable }
func (f *failingTier) Clear(context.Context, string) error        { return tier.ErrUnavailable }
func (f *failingTier) Iterate(context.Context, func(*tier.Entry) bool) error {
	return tier.ErrUnavailable
}
func (f *failingTier) Used() int64 { return 0 }
func (f *failingTier) Len() int    { return 0 }

func TestFailingTierIsolation(t *testing.T) {
	m := newTestManager(t, Config{}, WithTier(&failingTier{kind: tier.KindDurableKV}))
	ctx := t.Context()

	// The config category targets memory, session and the durable KV tier;
	// the failing KV tier must not surface.
	if err := m.Set(ctx, "k", []byte("v"), &SetOptions{Category: CategoryConfig}); err != nil {
		t.Fatalf("Set with failing tier = %v", err)
	}
	got, err := m.Get(ctx, "k", nil)
	if err != nil {
		t.Fatalf("Get with failing tier = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
	if snap := m.Stats(); snap.Errors == 0 {
		t.Error("expected tier failures to be counted")
	}
}

func TestBreakerSkipsDeadTier(t *testing.T) {
	m := newTestManager(t, Config{},
		WithTier(&failingTier{kind: tier.KindDurableKV}),
	)
	ctx := t.Context()

	// Drive enough failures to trip the breaker, then verify probes stop
	// reaching the backend.
	for range 10 {
		_, _ = m.Get(ctx, "anything", &GetOptions{Tiers: []tier.Kind{tier.KindDurableKV}})
	}
	br := m.breakers[tier.KindDurableKV]
	if br.Allow() {
		t.Fatal("breaker still closed after repeated backend failures")
	}
}

func TestEncryptionRoundtrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "cache.key")
	cfg := Config{EnableEncryption: true, EncryptionKeyPath: keyPath}
	m := newTestManager(t, cfg)
	ctx := t.Context()

	want := []byte("sensitive payload")
	if err := m.Set(ctx, "secret", want, &SetOptions{Encrypt: true}); err != nil {
		t.Fatal(err)
	}

	// Stored bytes must not contain the plaintext.
	e, err := m.byKind[tier.KindMemory].Get(ctx, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if !e.Encrypted {
		t.Fatal("entry stored without encryption flag")
	}
	if bytes.Contains(e.Payload, want) {
		t.Fatal("plaintext visible in stored payload")
	}

	got, err := m.Get(ctx, "secret", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("decrypted Get = %q, want %q", got, want)
	}

	// NoDecrypt returns the ciphertext as stored.
	raw, err := m.Get(ctx, "secret", &GetOptions{NoDecrypt: true})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(raw, want) {
		t.Error("NoDecrypt returned plaintext")
	}
}

func TestCorruptCiphertextIsAMiss(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "cache.key")
	m := newTestManager(t, Config{EnableEncryption: true, EncryptionKeyPath: keyPath})
	ctx := t.Context()

	if err := m.Set(ctx, "secret", []byte("payload"), &SetOptions{Encrypt: true}); err != nil {
		t.Fatal(err)
	}
	e, err := m.byKind[tier.KindMemory].Get(ctx, "secret")
	if err != nil {
		t.Fatal(err)
	}
	e.Payload[len(e.Payload)-1] ^= 0xff
	if err := m.byKind[tier.KindMemory].Set(ctx, e); err != nil {
		t.Fatal(err)
	}
	// Session still holds an intact replica; restrict to memory to observe
	// the fail-closed path.
	if _, err := m.Get(ctx, "secret", &GetOptions{Tiers: []tier.Kind{tier.KindMemory}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(corrupt) = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "k", []byte("v"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "k", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "absent", nil); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}

	snap := m.Stats()
	if snap.Hits != 1 || snap.Misses != 1 || snap.Sets != 1 {
		t.Errorf("snapshot = %d hits / %d misses / %d sets, want 1/1/1",
			snap.Hits, snap.Misses, snap.Sets)
	}
	if snap.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", snap.HitRate)
	}
	mem := snap.Tiers[tier.KindMemory.String()]
	if mem.Hits != 1 {
		t.Errorf("memory tier hits = %d, want 1", mem.Hits)
	}
	if mem.Bytes == 0 || mem.Entries == 0 {
		t.Errorf("memory tier usage = %d bytes / %d entries, want non-zero", mem.Bytes, mem.Entries)
	}
}

func TestHealthReport(t *testing.T) {
	m := newTestManager(t, Config{})
	r := m.HealthReport()
	if r.Status == "" {
		t.Fatal("empty health status")
	}
}

func TestEvents(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	var mu sync.Mutex
	seen := make(map[EventType]int)
	m.Subscribe(EventAll, func(e Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	var hits int
	m.Subscribe(EventHit, func(Event) { hits++ })

	if err := m.Set(ctx, "k", []byte("v"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "k", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "absent", nil); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, tc := range []struct {
		typ  EventType
		want int
	}{
		{EventSet, 1},
		{EventHit, 1},
		{EventMiss, 1},
		{EventDelete, 1},
	} {
		if seen[tc.typ] != tc.want {
			t.Errorf("%s events = %d, want %d", tc.typ, seen[tc.typ], tc.want)
		}
	}
	if hits != 1 {
		t.Errorf("typed hit handler ran %d times, want 1", hits)
	}
}

func TestWarm(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	loads := 0
	task := warmup.Task{
		Key: "warm:1",
		Load: func(context.Context, string) ([]byte, error) {
			loads++
			return []byte("preloaded"), nil
		},
		Category: CategoryConfig,
		Priority: tier.High,
	}
	if err := m.Warm(ctx, task); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if loads != 1 {
		t.Fatalf("loader ran %d times, want 1", loads)
	}

	got, err := m.Get(ctx, "warm:1", nil)
	if err != nil {
		t.Fatalf("Get after Warm: %v", err)
	}
	if string(got) != "preloaded" {
		t.Errorf("Get = %q, want %q", got, "preloaded")
	}

	// Warmed entries get an extended lifetime.
	e, err := m.byKind[tier.KindMemory].Get(ctx, "warm:1")
	if err != nil {
		t.Fatal(err)
	}
	if ttl := e.TTL(time.Now()); ttl <= m.cfg.DefaultTTL {
		t.Errorf("warmed TTL = %v, want > default %v", ttl, m.cfg.DefaultTTL)
	}
}

func TestPrefetch(t *testing.T) {
	m := newTestManager(t, Config{PrefetchEnabled: true})
	ctx := t.Context()

	if err := m.Set(ctx, "have", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	loaded := make(map[string]bool)
	load := func(_ context.Context, key string) ([]byte, error) {
		mu.Lock()
		loaded[key] = true
		mu.Unlock()
		return []byte("fetched:" + key), nil
	}

	pairs := []warmup.KeyLoader{
		{Key: "have", Load: load},
		{Key: "need", Load: load},
	}
	if err := m.Prefetch(ctx, pairs); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if loaded["have"] {
		t.Error("prefetch loaded a key that was already cached")
	}
	if !loaded["need"] {
		t.Error("prefetch skipped an uncached key")
	}

	e, err := m.byKind[tier.KindMemory].Get(ctx, "need")
	if err != nil {
		t.Fatalf("prefetched entry not stored: %v", err)
	}
	if e.Category != PrefetchCategory {
		t.Errorf("prefetched category = %q, want %q", e.Category, PrefetchCategory)
	}
}

func TestPrefetchDisabled(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	called := false
	pairs := []warmup.KeyLoader{{
		Key:  "k",
		Load: func(context.Context, string) ([]byte, error) { called = true; return nil, nil },
	}}
	if err := m.Prefetch(ctx, pairs); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if called {
		t.Error("prefetch ran a loader while disabled")
	}
}

func TestNoReplicate(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx := t.Context()

	if err := m.Set(ctx, "solo", []byte("v"), &SetOptions{NoReplicate: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.byKind[tier.KindMemory].Get(ctx, "solo"); err != nil {
		t.Errorf("fastest tier missing entry: %v", err)
	}
	if _, err := m.byKind[tier.KindSession].Get(ctx, "solo"); !errors.Is(err, tier.ErrNotFound) {
		t.Errorf("session tier Get = %v, want ErrNotFound", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	m, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{MaxMemorySize: -1}); err == nil {
		t.Error("New accepted negative MaxMemorySize")
	}
	if _, err := New(Config{EnableEncryption: true}); err == nil {
		t.Error("New accepted encryption without key path or encryptor")
	}
}
