// Package limits admits or rejects tool invocations across four independent
// dimensions.
//
// # Overview
//
// Each request is checked in order against:
//
//   - a per-session token bucket (session_global)
//   - a per-session, per-tool sliding window (tool_specific)
//   - a per-session, per-category sliding window (category_based)
//   - a per-IP token bucket (ip_based)
//
// The first dimension that rejects wins, and later dimensions are left
// untouched. Dimensions already passed keep their consumption.
//
// # Architecture
//
//   - ratelimit: token bucket and sliding window primitives
//   - storage: violation journal (memory, SQLite)
//   - enforcement: block, alert, or queue on deny
//   - cleanup: cron-driven session expiry and journal retention
//
// # Usage
//
//	manager, err := limits.NewManager(limits.Config{
//	    Limits:  limits.DefaultLimits(),
//	    Metrics: limits.NewMetrics(prometheus.DefaultRegisterer),
//	})
//	if err != nil {
//	    return err
//	}
//
//	decision, err := manager.Check(ctx, limits.Request{
//	    SessionID: "session-1",
//	    ToolName:  "generate_handler",
//	    Category:  "code_generation",
//	    IPAddress: "203.0.113.7",
//	})
//
//	// Periodically
//	removed := manager.CleanupExpiredSessions(time.Hour)
//
// # Thread Safety
//
// All Manager operations are safe for concurrent use.
package limits
