package tiercache

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Keksclan/tiercache/breaker"
	"github.com/Keksclan/tiercache/codec"
	"github.com/Keksclan/tiercache/retry"
	"github.com/Keksclan/tiercache/tier"
	"github.com/Keksclan/tiercache/tracing"
	"github.com/Keksclan/tiercache/warmup"
)

// Option configures a Manager.
type Option func(*settings)

// settings holds the structural configuration assembled via functional
// options; tunables live in Config.
type settings struct {
	logger      *slog.Logger
	tiers       []tier.Tier
	boltPath    string
	compressor  codec.Compressor
	encryptor   codec.Encryptor
	trace       *tracing.Config
	registerer  prometheus.Registerer
	warmupTasks []warmup.Task
	loaderRetry retry.Config
	breakerCfg  breaker.Config
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithTier registers a storage tier. At most one tier per kind; the memory
// and session tiers are created automatically from Config sizes when not
// supplied.
func WithTier(t tier.Tier) Option {
	return func(s *settings) { s.tiers = append(s.tiers, t) }
}

// WithRedis registers a Redis-backed durable key-value tier.
func WithRedis(addr, password string, db int) Option {
	return func(s *settings) { s.tiers = append(s.tiers, tier.NewRedis(addr, password, db)) }
}

// WithBolt registers a file-backed durable structured tier at path. The
// store is opened by New so open errors surface there.
func WithBolt(path string) Option {
	return func(s *settings) { s.boltPath = path }
}

// WithCompressor replaces the default s2 compression stage.
func WithCompressor(c codec.Compressor) Option {
	return func(s *settings) { s.compressor = c }
}

// WithEncryptor injects the encryption stage, bypassing the key file that
// Config.EncryptionKeyPath would otherwise create.
func WithEncryptor(e codec.Encryptor) Option {
	return func(s *settings) { s.encryptor = e }
}

// WithTracing enables OpenTelemetry spans for cache operations.
func WithTracing(cfg *tracing.Config) Option {
	return func(s *settings) { s.trace = cfg }
}

// WithMetrics registers Prometheus metrics on reg. Without this option no
// metrics are registered and MetricsHandler serves the default registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// WithWarmupTasks registers the tasks run at startup when
// Config.CacheWarmingEnabled is set.
func WithWarmupTasks(tasks ...warmup.Task) Option {
	return func(s *settings) { s.warmupTasks = append(s.warmupTasks, tasks...) }
}

// WithLoaderRetry retries failing warmup loaders with the given policy.
func WithLoaderRetry(cfg retry.Config) Option {
	return func(s *settings) { s.loaderRetry = cfg }
}

// WithBreaker overrides the circuit breaker parameters guarding the durable
// tiers.
func WithBreaker(cfg breaker.Config) Option {
	return func(s *settings) { s.breakerCfg = cfg }
}
