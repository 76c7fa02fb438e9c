package enforcement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/ratelimit"
)

// minQueueWait is the shortest pause between re-checks of a queued request.
const minQueueWait = 10 * time.Millisecond

// Enforcer decides what happens to a denied request: block it, let it
// through with an alert, or queue it until the limiter admits it.
type Enforcer struct {
	config Config
	slots  *ratelimit.ConcurrentLimiter
	logger *slog.Logger
}

// NewEnforcer creates a new enforcer.
//
// Example:
//
//	enforcer := NewEnforcer(Config{
//	    DefaultAction: ActionQueue,
//	    QueueDepth:    100,
//	    QueueTimeout:  5 * time.Second,
//	})
func NewEnforcer(config Config) *Enforcer {
	if config.DefaultAction == "" {
		config.DefaultAction = ActionBlock
	}
	if config.QueueDepth == 0 {
		config.QueueDepth = 100
	}
	if config.QueueTimeout == 0 {
		config.QueueTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Enforcer{
		config: config,
		slots:  ratelimit.NewConcurrentLimiter(config.QueueDepth),
		logger: config.Logger.With("component", "limits.enforcement"),
	}
}

// Enforce applies the configured action to a decision. An allowed decision
// passes through unchanged. recheck is only used by ActionQueue and may be
// nil otherwise.
//
// The error is non-nil only if recheck fails or ctx ends while queued.
func (e *Enforcer) Enforce(ctx context.Context, d *limits.Decision, recheck CheckFunc) (*Result, error) {
	if d.Allowed {
		return &Result{Allowed: true, Decision: d}, nil
	}

	switch e.config.DefaultAction {
	case ActionAlert:
		return e.enforceAlert(ctx, d), nil

	case ActionQueue:
		if recheck == nil {
			return e.enforceBlock(d), nil
		}
		return e.enforceQueue(ctx, d, recheck)

	default:
		return e.enforceBlock(d), nil
	}
}

// enforceBlock rejects the request.
func (e *Enforcer) enforceBlock(d *limits.Decision) *Result {
	return &Result{
		Allowed:    false,
		Action:     ActionBlock,
		Decision:   d,
		Reason:     d.Message,
		RetryAfter: d.Info.RetryAfter,
	}
}

// enforceAlert logs the deny and allows the request.
func (e *Enforcer) enforceAlert(ctx context.Context, d *limits.Decision) *Result {
	e.logger.WarnContext(ctx, "rate limit exceeded, allowing request",
		"session_id", d.Info.SessionID,
		"tool", d.Info.ToolName,
		"dimension", d.Info.DeniedBy,
		"reason", d.Message,
	)

	return &Result{
		Allowed:      true,
		Action:       ActionAlert,
		Decision:     d,
		AlertMessage: d.Message,
	}
}

// enforceQueue waits for the advised delay and re-checks until the request
// is admitted, the queue timeout expires, or ctx ends. Every re-check is a
// full admission check and counts against the session like any request.
func (e *Enforcer) enforceQueue(ctx context.Context, d *limits.Decision, recheck CheckFunc) (*Result, error) {
	if !e.slots.Acquire() {
		return &Result{
			Allowed:    false,
			Action:     ActionQueue,
			Decision:   d,
			Reason:     fmt.Sprintf("%s: %v", d.Message, ErrQueueFull),
			RetryAfter: d.Info.RetryAfter,
			Err:        ErrQueueFull,
		}, nil
	}
	defer e.slots.Release()

	timer := time.NewTimer(e.config.QueueTimeout)
	defer timer.Stop()

	attempts := 0
	for !d.Allowed {
		wait := max(d.Info.RetryAfter, minQueueWait)
		pause := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			pause.Stop()
			return nil, ctx.Err()

		case <-timer.C:
			pause.Stop()
			e.logger.DebugContext(ctx, "queued request timed out",
				"session_id", d.Info.SessionID,
				"attempts", attempts,
			)
			return &Result{
				Allowed:    false,
				Action:     ActionQueue,
				Decision:   d,
				Reason:     fmt.Sprintf("%s: %v", d.Message, ErrQueueTimeout),
				RetryAfter: d.Info.RetryAfter,
				Attempts:   attempts,
				Err:        ErrQueueTimeout,
			}, nil

		case <-pause.C:
		}

		next, err := recheck()
		if err != nil {
			return nil, err
		}
		d = next
		attempts++
	}

	return &Result{
		Allowed:  true,
		Action:   ActionQueue,
		Decision: d,
		Attempts: attempts,
	}, nil
}

// QueueLength returns the number of requests currently waiting.
func (e *Enforcer) QueueLength() int {
	return int(e.slots.Current())
}

// GetConfig returns the current enforcer configuration.
func (e *Enforcer) GetConfig() Config {
	return e.config
}
