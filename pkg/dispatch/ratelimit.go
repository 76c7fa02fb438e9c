package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/enforcement"
	"mercator-hq/toolgate/pkg/telemetry/logging"
	"mercator-hq/toolgate/pkg/telemetry/tracing"
)

// Checker admits tool calls. *limits.Manager implements it.
type Checker interface {
	Check(ctx context.Context, req limits.Request) (*limits.Decision, error)
}

// Extractor builds the admission request for a tool call.
type Extractor func(ctx context.Context, call *ToolCall) (limits.Request, error)

// DefaultExtractor reads the request from the call's fields. A missing
// session ID is taken from the context when logging.WithSession set one.
func DefaultExtractor(ctx context.Context, call *ToolCall) (limits.Request, error) {
	req := limits.Request{
		SessionID: call.SessionID,
		ToolName:  call.ToolName,
		Category:  call.Category,
		IPAddress: call.IPAddress,
	}
	if req.SessionID == "" {
		req.SessionID = logging.GetSession(ctx)
	}
	return req, nil
}

// Option configures the RateLimit middleware.
type Option func(*options)

type options struct {
	extractor Extractor
	enforcer  *enforcement.Enforcer
	logger    *slog.Logger
	tracer    *tracing.Tracer
}

// WithExtractor replaces DefaultExtractor.
func WithExtractor(e Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithEnforcer applies an enforcement policy to denied calls. Without one,
// every deny is returned as a *RateLimitError.
func WithEnforcer(e *enforcement.Enforcer) Option {
	return func(o *options) { o.enforcer = e }
}

// WithTracer records a "toolgate.admission" span for every call.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithLogger sets the middleware logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// RateLimit returns middleware that admits every call through checker before
// invoking the wrapped handler. A denied call never reaches the handler and
// fails with a *RateLimitError.
//
// Example:
//
//	handler := dispatch.Chain(runTool,
//	    dispatch.RateLimit(manager, dispatch.WithEnforcer(enforcer)),
//	)
func RateLimit(checker Checker, opts ...Option) Middleware {
	o := &options{
		extractor: DefaultExtractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With("component", "dispatch.ratelimit")

	return func(next Handler) Handler {
		return func(ctx context.Context, call *ToolCall) (*ToolResult, error) {
			req, err := o.extractor(ctx, call)
			if err != nil {
				return nil, fmt.Errorf("failed to extract admission request: %w", err)
			}

			if err := admit(ctx, checker, o, req); err != nil {
				return nil, err
			}

			logger.DebugContext(ctx, "tool call admitted",
				"session_id", req.SessionID,
				"tool", req.ToolName,
				"category", req.Category,
			)

			ctx = logging.WithSession(ctx, req.SessionID)
			ctx = logging.WithTool(ctx, req.ToolName)
			return next(ctx, call)
		}
	}
}

// admit runs the admission check and, for a deny, the enforcement policy,
// inside one span.
func admit(ctx context.Context, checker Checker, o *options, req limits.Request) (err error) {
	ctx, span := o.tracer.Start(ctx, "toolgate.admission", trace.WithAttributes(tracing.RequestAttributes(req)...))
	defer func() {
		var rlErr *RateLimitError
		if err != nil && !errors.As(err, &rlErr) {
			tracing.SetError(span, err)
		}
		span.End()
	}()

	decision, err := checker.Check(ctx, req)
	if err != nil {
		return fmt.Errorf("admission check failed: %w", err)
	}
	tracing.SetDecisionAttributes(span, decision)

	if decision.Allowed {
		return nil
	}
	if o.enforcer == nil {
		return &RateLimitError{Decision: decision}
	}

	result, err := o.enforcer.Enforce(ctx, decision, func() (*limits.Decision, error) {
		return checker.Check(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("enforcement failed: %w", err)
	}
	tracing.SetEnforcementAttributes(span, string(result.Action), result.Allowed)
	if !result.Allowed {
		return &RateLimitError{Decision: result.Decision, Cause: result.Err}
	}
	return nil
}

// RateLimitError is returned for a tool call the limiter rejected.
type RateLimitError struct {
	// Decision is the deny decision.
	Decision *limits.Decision

	// Cause is set when a queued call gave up, e.g. enforcement.ErrQueueFull.
	Cause error
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%v: %s", limits.ErrRateLimitExceeded, e.Decision.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

// Unwrap exposes limits.ErrRateLimitExceeded and the cause, if any.
func (e *RateLimitError) Unwrap() []error {
	if e.Cause != nil {
		return []error{limits.ErrRateLimitExceeded, e.Cause}
	}
	return []error{limits.ErrRateLimitExceeded}
}

// RetryAfter returns the advisory wait before retrying.
func (e *RateLimitError) RetryAfter() time.Duration {
	return e.Decision.Info.RetryAfter
}

// Dimension returns the dimension that denied the call.
func (e *RateLimitError) Dimension() limits.Dimension {
	return e.Decision.Info.DeniedBy
}

// AsRateLimitError returns the *RateLimitError in err's chain, if any.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rlErr *RateLimitError
	ok := errors.As(err, &rlErr)
	return rlErr, ok
}
