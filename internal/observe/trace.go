package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName scopes every span the analysis server emits.
const tracerName = "github.com/submit4201/candor"

// StartSpan opens a span on the globally registered tracer. Callers own the
// returned span and must End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// CorrelationID is the trace ID of the active span. The HTTP middleware
// reflects it as the X-Correlation-ID header so one analysis request can be
// followed from the event stream into the logs. Empty without an active
// span.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
