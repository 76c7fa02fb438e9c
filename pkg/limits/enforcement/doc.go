// Package enforcement decides what happens to a denied admission check.
//
// # Overview
//
//   - Block: return the deny to the caller
//   - Alert: log the deny and let the request through
//   - Queue: wait for the advised retry delay and check again, bounded by a
//     queue depth and a total timeout
//
// # Usage
//
//	enforcer := enforcement.NewEnforcer(enforcement.Config{
//	    DefaultAction: enforcement.ActionQueue,
//	    QueueDepth:    100,
//	    QueueTimeout:  5 * time.Second,
//	})
//
//	decision, err := manager.Check(ctx, req)
//	result, err := enforcer.Enforce(ctx, decision, func() (*limits.Decision, error) {
//	    return manager.Check(ctx, req)
//	})
//
// # Thread Safety
//
// The Enforcer is safe for concurrent use.
package enforcement
