// Package observe provides observability primitives for the Candor analysis
// server: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so metrics can be scraped
// from the standard /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Candor metrics.
const meterName = "github.com/submit4201/candor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ServiceDuration tracks per-analyzer wall time. Use with attribute:
	//   attribute.String("service", ...)
	ServiceDuration metric.Float64Histogram

	// LLMDuration tracks provider call latency. Use with attributes:
	//   attribute.String("model", ...), attribute.String("kind", ...)
	LLMDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// LLMRequests counts provider calls. Use with attributes:
	//   attribute.String("model", ...), attribute.String("kind", ...),
	//   attribute.String("status", ...)
	LLMRequests metric.Int64Counter

	// LLMErrors counts provider failures by model and kind.
	LLMErrors metric.Int64Counter

	// Chunks counts result chunks forwarded to consumers. Use with
	// attributes: attribute.String("service", ...), attribute.String("phase", ...)
	Chunks metric.Int64Counter

	// ServiceErrors counts per-service error entries by service and code.
	ServiceErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveAnalyses tracks the number of in-flight analysis requests.
	ActiveAnalyses metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a pipeline that mixes sub-second local analyzers with multi-second LLM
// calls.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ServiceDuration, err = m.Float64Histogram("candor.service.duration",
		metric.WithDescription("Wall time of one analyzer from start to terminal chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("candor.llm.duration",
		metric.WithDescription("Latency of LLM provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("candor.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.LLMRequests, err = m.Int64Counter("candor.llm.requests",
		metric.WithDescription("Total LLM provider calls by model, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMErrors, err = m.Int64Counter("candor.llm.errors",
		metric.WithDescription("Total LLM provider failures by model and kind."),
	); err != nil {
		return nil, err
	}
	if met.Chunks, err = m.Int64Counter("candor.chunks",
		metric.WithDescription("Total result chunks forwarded by service and phase."),
	); err != nil {
		return nil, err
	}
	if met.ServiceErrors, err = m.Int64Counter("candor.service.errors",
		metric.WithDescription("Total error entries emitted by service and code."),
	); err != nil {
		return nil, err
	}

	if met.ActiveAnalyses, err = m.Int64UpDownCounter("candor.active_analyses",
		metric.WithDescription("Number of analysis requests currently in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLLMRequest records one provider call with the standard attribute set.
func (m *Metrics) RecordLLMRequest(ctx context.Context, model, kind, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("kind", kind),
		attribute.String("status", status),
	)
	m.LLMRequests.Add(ctx, 1, attrs)
	m.LLMDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("kind", kind),
	))
	if status != "ok" {
		m.LLMErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("kind", kind),
		))
	}
}

// RecordServiceDuration records one analyzer's wall time from start to its
// terminal chunk.
func (m *Metrics) RecordServiceDuration(ctx context.Context, service string, seconds float64) {
	m.ServiceDuration.Record(ctx, seconds, metric.WithAttributes(Attr("service", service)))
}

// RecordChunk records one forwarded result chunk.
func (m *Metrics) RecordChunk(ctx context.Context, service, phase string) {
	m.Chunks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("phase", phase),
	))
}

// RecordServiceError records one error entry emitted by a service.
func (m *Metrics) RecordServiceError(ctx context.Context, service, code string) {
	m.ServiceErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("code", code),
	))
}
