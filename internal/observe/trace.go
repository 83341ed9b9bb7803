package observe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/reelwright"

// Tracer returns the reelwright tracer from the global provider.
func Tracer() trace.Tracer { return otel.Tracer(tracerName) }

// StartSpan starts a span on [Tracer]. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// Stage times one pipeline step as both a span and a histogram sample.
type Stage struct {
	span    trace.Span
	hist    metric.Float64Histogram
	attrs   []attribute.KeyValue
	started time.Time
}

// StartStage opens a span called name. attrs are set on the span and on the
// histogram sample recorded by [Stage.End]; hist may be nil.
func StartStage(ctx context.Context, name string, hist metric.Float64Histogram, attrs ...attribute.KeyValue) (context.Context, *Stage) {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Stage{span: span, hist: hist, attrs: attrs, started: time.Now()}
}

// End marks the span failed when err is non-nil, records the latency and
// closes the span. It reports the elapsed time.
func (s *Stage) End(ctx context.Context, err error) time.Duration {
	d := time.Since(s.started)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	if s.hist != nil {
		s.hist.Record(ctx, d.Seconds(), metric.WithAttributes(s.attrs...))
	}
	s.span.End()
	return d
}

// Span exposes the stage span for extra attributes.
func (s *Stage) Span() trace.Span { return s.span }

// CorrelationID is the hex trace ID active in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns slog.Default, tagged with trace_id and span_id when ctx
// carries a span.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
