// Package tracing provides OpenTelemetry span helpers for cache operations.
// It is entirely optional: spans are only recorded when a [Config] with a
// TracerProvider is wired in via the WithTracing manager option.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds the OpenTelemetry configuration used for cache operation
// spans.
type Config struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider
}

// tracer returns a configured [trace.Tracer].
func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/Keksclan/tiercache/tracing")
}

var noopTracer = noop.NewTracerProvider().Tracer("")

// Start opens a span named after the cache operation ("cache.get",
// "cache.set", ...). A nil cfg yields a non-recording span so call sites
// need no nil checks.
func Start(ctx context.Context, cfg *Config, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if cfg == nil {
		return noopTracer.Start(ctx, op)
	}
	ctx, span := cfg.tracer().Start(ctx, op, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attrs...)
	return ctx, span
}

// End records err on the span (when non-nil) and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Key returns the standard attribute for a cache key.
func Key(key string) attribute.KeyValue {
	return attribute.String("cache.key", key)
}

// TierName returns the standard attribute for the tier that served an
// operation.
func TierName(name string) attribute.KeyValue {
	return attribute.String("cache.tier", name)
}

// Hit returns the standard attribute reporting whether a get was a hit.
func Hit(hit bool) attribute.KeyValue {
	return attribute.Bool("cache.hit", hit)
}
