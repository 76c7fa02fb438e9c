// Package telemetry groups the observability packages used by toolgate.
//
//   - logging: slog construction with level, format, and IP redaction
//   - tracing: OpenTelemetry tracer setup and decision span attributes
//   - health: component checks behind the admin server's /health routes
//
// Limiter metrics live with the limiter in pkg/limits, registered on the
// Prometheus registry the caller passes in.
package telemetry
