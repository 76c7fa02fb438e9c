package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
)

// propagator handles W3C Trace Context (traceparent, tracestate) and W3C
// Baggage headers.
var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Extract returns ctx carrying the remote span context found in headers. If
// there is none, ctx is returned unchanged.
//
//	ctx := tracing.Extract(r.Context(), r.Header)
//	ctx, span := tracer.Start(ctx, "handle_request")
//	defer span.End()
func Extract(ctx context.Context, headers http.Header) context.Context {
	return propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the span context of ctx into headers.
func Inject(ctx context.Context, headers http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}
