// Package dispatch composes middleware around tool handlers.
//
// The RateLimit middleware is the one way tool code reaches the limiter: it
// builds a limits.Request from the call, runs the admission check, and
// either invokes the tool or fails with a *RateLimitError.
//
//	handler := dispatch.Chain(
//	    func(ctx context.Context, call *dispatch.ToolCall) (*dispatch.ToolResult, error) {
//	        return runTool(ctx, call)
//	    },
//	    dispatch.RateLimit(manager),
//	)
//
//	_, err := handler(ctx, &dispatch.ToolCall{SessionID: "s1", ToolName: "nl_query"})
//	if errors.Is(err, limits.ErrRateLimitExceeded) {
//	    rlErr, _ := dispatch.AsRateLimitError(err)
//	    // back off for rlErr.RetryAfter()
//	}
package dispatch
