package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/toolgate/pkg/telemetry/logging"
	"mercator-hq/toolgate/pkg/telemetry/tracing"
)

// TraceIDHeader echoes the trace ID of the request span.
const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware starts a server span per request, continuing any W3C
// trace context the caller sent. The span is renamed to the matched route
// once the mux has routed the request.
func TracingMiddleware(tracer *tracing.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tracing.Extract(r.Context(), r.Header)
			ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String(tracing.AttrHTTPMethod, r.Method)),
			)
			defer span.End()

			if requestID := logging.GetRequestID(ctx); requestID != "" {
				span.SetAttributes(attribute.String(tracing.AttrRequestID, requestID))
			}
			if traceID := tracing.TraceID(ctx); traceID != "" && tracer.Enabled() {
				w.Header().Set(TraceIDHeader, traceID)
			}

			rw := newResponseWriter(w)
			routed := r.WithContext(ctx)
			next.ServeHTTP(rw, routed)

			if routed.Pattern != "" {
				span.SetName(routed.Pattern)
				span.SetAttributes(attribute.String(tracing.AttrHTTPRoute, routed.Pattern))
			}
			span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, rw.statusCode))
			if rw.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			}
		})
	}
}
