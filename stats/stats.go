// Package stats tracks cache operation counters, per-tier usage estimates
// and a derived health report. Counters are plain atomics so recording is
// cheap on the hot path; Prometheus metrics are maintained alongside when a
// registerer is supplied.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Keksclan/tiercache/tier"
)

// Collector accumulates cache statistics. All methods are safe for
// concurrent use.
type Collector struct {
	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	deletes     atomic.Int64
	errors      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
	bytesSaved  atomic.Int64

	tiers [tier.KindDurableStructured + 1]tierCounters

	mu    sync.Mutex
	usage map[tier.Kind]Usage

	prom *promMetrics
}

type tierCounters struct {
	probes atomic.Int64
	hits   atomic.Int64
}

// Usage is a point-in-time estimate of a tier's footprint.
type Usage struct {
	Bytes   int64
	Entries int
}

// NewCollector creates a collector. When reg is non-nil, Prometheus
// counters and gauges are registered on it and updated alongside the
// in-process counters.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{usage: make(map[tier.Kind]Usage)}
	if reg != nil {
		c.prom = newPromMetrics(reg)
	}
	return c
}

// RecordProbe records one lookup against a tier and whether it hit.
func (c *Collector) RecordProbe(k tier.Kind, hit bool) {
	tc := &c.tiers[k]
	tc.probes.Add(1)
	if hit {
		tc.hits.Add(1)
	}
	if c.prom != nil {
		c.prom.probes.WithLabelValues(k.String(), result(hit)).Inc()
	}
}

// Hit records a get served from some tier.
func (c *Collector) Hit() { c.inc(&c.hits, "hit") }

// Miss records a get that found no live entry in any tier.
func (c *Collector) Miss() { c.inc(&c.misses, "miss") }

// Set records a completed set operation.
func (c *Collector) Set() { c.inc(&c.sets, "set") }

// Delete records a delete operation.
func (c *Collector) Delete() { c.inc(&c.deletes, "delete") }

// Error records an isolated tier or codec failure.
func (c *Collector) Error() { c.inc(&c.errors, "error") }

// Eviction records entries removed to reclaim space.
func (c *Collector) Eviction(n int) {
	c.evictions.Add(int64(n))
	if c.prom != nil {
		c.prom.ops.WithLabelValues("evict").Add(float64(n))
	}
}

// Expiration records entries removed because their TTL elapsed.
func (c *Collector) Expiration(n int) {
	c.expirations.Add(int64(n))
	if c.prom != nil {
		c.prom.ops.WithLabelValues("expire").Add(float64(n))
	}
}

// CompressionSaved records payload bytes avoided by compression.
func (c *Collector) CompressionSaved(n int64) {
	c.bytesSaved.Add(n)
	if c.prom != nil {
		c.prom.saved.Add(float64(n))
	}
}

// SetUsage stores the latest footprint estimate for a tier.
func (c *Collector) SetUsage(k tier.Kind, u Usage) {
	c.mu.Lock()
	c.usage[k] = u
	c.mu.Unlock()
	if c.prom != nil {
		c.prom.usage.WithLabelValues(k.String()).Set(float64(u.Bytes))
	}
}

func (c *Collector) inc(a *atomic.Int64, op string) {
	a.Add(1)
	if c.prom != nil {
		c.prom.ops.WithLabelValues(op).Inc()
	}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Hits             int64
	Misses           int64
	Sets             int64
	Deletes          int64
	Errors           int64
	Evictions        int64
	Expirations      int64
	CompressionSaved int64
	HitRate          float64
	Tiers            map[string]TierStats
}

// TierStats reports per-tier probe counters and usage estimates.
type TierStats struct {
	Probes  int64
	Hits    int64
	HitRate float64
	Bytes   int64
	Entries int
}

// Snapshot returns a consistent-enough copy of the counters. Individual
// counters are read atomically; cross-counter skew under concurrent load is
// acceptable.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Sets:             c.sets.Load(),
		Deletes:          c.deletes.Load(),
		Errors:           c.errors.Load(),
		Evictions:        c.evictions.Load(),
		Expirations:      c.expirations.Load(),
		CompressionSaved: c.bytesSaved.Load(),
		Tiers:            make(map[string]TierStats, len(tier.Kinds)),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range tier.Kinds {
		tc := &c.tiers[k]
		ts := TierStats{
			Probes:  tc.probes.Load(),
			Hits:    tc.hits.Load(),
			Bytes:   c.usage[k].Bytes,
			Entries: c.usage[k].Entries,
		}
		if ts.Probes > 0 {
			ts.HitRate = float64(ts.Hits) / float64(ts.Probes)
		}
		s.Tiers[k.String()] = ts
	}
	return s
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

type promMetrics struct {
	ops    *prometheus.CounterVec
	probes *prometheus.CounterVec
	saved  prometheus.Counter
	usage  *prometheus.GaugeVec
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	p := &promMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiercache",
			Name:      "operations_total",
			Help:      "Cache operations by outcome.",
		}, []string{"op"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiercache",
			Name:      "tier_probes_total",
			Help:      "Tier lookups by tier and result.",
		}, []string{"tier", "result"}),
		saved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tiercache",
			Name:      "compression_saved_bytes_total",
			Help:      "Payload bytes saved by compression.",
		}),
		usage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tiercache",
			Name:      "tier_used_bytes",
			Help:      "Estimated payload bytes held per tier.",
		}, []string{"tier"}),
	}
	reg.MustRegister(p.ops, p.probes, p.saved, p.usage)
	return p
}
