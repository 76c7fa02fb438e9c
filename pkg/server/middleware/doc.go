// Package middleware provides HTTP middleware for the toolgate server.
//
// The chain used by the admin server, outermost first:
//
//	RecoveryMiddleware -> RequestIDMiddleware -> TracingMiddleware -> LoggingMiddleware -> [auth] -> mux
//
// TracingMiddleware continues W3C trace context from the caller, so log
// lines written by LoggingMiddleware carry the trace ID.
//
// RateLimitMiddleware is for HTTP-fronted tools: it runs each request
// through a limits checker and answers denials with 429 Too Many Requests,
// a Retry-After header, and an X-RateLimit-Dimension header naming the
// dimension that rejected the call. When it runs inside TracingMiddleware the
// decision is recorded on the request span.
package middleware
