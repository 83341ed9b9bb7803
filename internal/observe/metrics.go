// Package observe provides application-wide observability primitives for
// reelwright: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [Setup] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all reelwright metrics.
const meterName = "github.com/MrWong99/reelwright"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// NormalizeDuration tracks media normalization (transcode + probe) latency.
	NormalizeDuration metric.Float64Histogram

	// STTDuration tracks per-segment speech-to-text latency.
	STTDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end transcription of one submission.
	PipelineDuration metric.Float64Histogram

	// LLMDuration tracks language-model completion latency.
	LLMDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Segments counts transcribed segments by outcome
	// ("ok", "empty", "failed", "extract_failed").
	Segments metric.Int64Counter

	// Submissions counts pipeline runs by outcome
	// ("success", "empty", "failed", "too_large").
	Submissions metric.Int64Counter

	// Generations counts scenario batch generations by kind
	// ("initial", "regenerate", "keep_all") and status.
	Generations metric.Int64Counter

	// DeliveredParts counts outbound message parts by mode and status.
	DeliveredParts metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by breaker
	// name and target state.
	BreakerTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks transcription pipeline runs currently in flight.
	ActiveJobs metric.Int64UpDownCounter

	// ActiveConversations tracks conversations currently being handled.
	ActiveConversations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for batch
// media and model calls, which range from sub-second to minutes.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.NormalizeDuration, "reelwright.normalize.duration", "Latency of media normalization."},
		{&met.STTDuration, "reelwright.stt.duration", "Latency of speech-to-text per segment."},
		{&met.PipelineDuration, "reelwright.pipeline.duration", "End-to-end transcription latency per submission."},
		{&met.LLMDuration, "reelwright.llm.duration", "Latency of LLM completion."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.ProviderRequests, "reelwright.provider.requests", "Total provider API requests by provider, kind, and status."},
		{&met.ProviderErrors, "reelwright.provider.errors", "Total provider errors by provider and kind."},
		{&met.Segments, "reelwright.segments", "Transcribed segments by outcome."},
		{&met.Submissions, "reelwright.submissions", "Transcription submissions by outcome."},
		{&met.Generations, "reelwright.generations", "Scenario batch generations by kind and status."},
		{&met.DeliveredParts, "reelwright.delivered_parts", "Outbound message parts by mode and status."},
		{&met.BreakerTransitions, "reelwright.breaker.transitions", "Circuit breaker state transitions."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ActiveJobs, err = m.Int64UpDownCounter("reelwright.active_jobs",
		metric.WithDescription("Number of transcription runs in flight."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConversations, err = m.Int64UpDownCounter("reelwright.active_conversations",
		metric.WithDescription("Number of conversations currently handling an input."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("reelwright.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSegment records one segment outcome.
func (m *Metrics) RecordSegment(ctx context.Context, outcome string) {
	m.Segments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSubmission records one pipeline run outcome.
func (m *Metrics) RecordSubmission(ctx context.Context, outcome string) {
	m.Submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordGeneration records one scenario batch generation.
func (m *Metrics) RecordGeneration(ctx context.Context, kind, status string) {
	m.Generations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordDeliveredPart records one outbound message part.
func (m *Metrics) RecordDeliveredPart(ctx context.Context, mode, status string) {
	m.DeliveredParts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("status", status),
		),
	)
}

// RecordBreakerTransition records a circuit breaker state change. Its
// signature matches resilience.CircuitBreakerConfig.OnStateChange once the
// state is rendered with String.
func (m *Metrics) RecordBreakerTransition(name, state string) {
	m.BreakerTransitions.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("breaker", name),
			attribute.String("state", state),
		),
	)
}
