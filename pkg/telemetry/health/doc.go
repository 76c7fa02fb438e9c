// Package health runs component health checks for the admin server.
//
// A Checker holds named checks. Liveness answers without running them;
// Readiness runs all of them concurrently, each bounded by the checker's
// timeout, and reports "degraded" if any fails or times out.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("journal", func(ctx context.Context) error {
//	    _, err := journal.Count(ctx, storage.Filter{Limit: 1})
//	    return err
//	})
//	mux.HandleFunc("GET /health", checker.ReadinessHandler())
//	mux.HandleFunc("GET /health/live", checker.LivenessHandler())
//
// Readiness responses are 200 when healthy and 503 when degraded, so the
// same endpoint serves load balancers and Kubernetes probes.
package health
