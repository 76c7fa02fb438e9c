// Package tracing provides OpenTelemetry tracing for toolgate.
//
// Spans are created for every tool-call admission (pkg/dispatch) and every
// admin HTTP request (pkg/server/middleware). Admission spans carry the
// session, tool, and category, and on a deny the dimension that rejected
// the call and the advisory retry delay.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    exporter: otlp          # or stdout
//	    endpoint: localhost:4317
//	    insecure: true
//	    sampler: ratio          # always, never, ratio
//	    sample_ratio: 0.1
//
// # Usage
//
//	tracer, err := tracing.New(tracing.Config{Enabled: true, Exporter: "stdout"})
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "toolgate.admission")
//	defer span.End()
//
// A disabled or nil Tracer produces no-op spans, so callers never need to
// check whether tracing is on.
//
// # Propagation
//
// Extract and Inject handle W3C traceparent and baggage headers, so a caller
// that is itself traced sees toolgate spans as children of its own.
package tracing
