// Package server provides the toolgate admin HTTP server.
//
// The server exposes the limiter to out-of-process callers and operators.
// It holds no state of its own; every route reads or drives a
// *limits.Manager.
//
// # Routes
//
//	POST /v1/check                  admission check, body is a limits.Request
//	GET  /v1/sessions               every tracked session
//	GET  /v1/sessions/{id}          one session, 404 if unknown
//	POST /v1/sessions/cleanup       remove idle sessions (?max_age=30m or ?max_age=1800)
//	GET  /v1/stats                  limits.SystemStats
//	GET  /v1/violations             journal entries (?session_id, dimension, since, limit)
//	GET  /v1/violations/export      journal download (?format=json|csv plus the filters above)
//	GET  /health                    readiness: 200 ok, 503 when a component check fails
//	GET  /health/live               liveness: always 200
//	GET  /version                   build version
//	GET  /metrics                   Prometheus exposition, when a Gatherer is set
//
// A denied admission check is not an HTTP error: /v1/check answers 200 with
// "allowed": false. Tools fronted over HTTP should use
// middleware.RateLimitMiddleware instead, which answers 429.
//
// # Basic Usage
//
//	srv := server.New(&cfg.Server, server.Options{
//	    Manager:  manager,
//	    Journal:  journal,
//	    Gatherer: registry,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled and then shuts down gracefully.
//
// With Options.Tracer set every request gets a server span named after its
// route, and the response carries the trace ID in X-Trace-ID.
//
// # Security
//
// Options.TLS switches the listener to HTTPS; build it with
// tls.Config.ToTLSConfig so certificates rotate without a restart.
// Options.Auth puts API key authentication in front of the mux. It runs
// after logging and tracing, so rejected requests are still logged and
// traced.
package server
