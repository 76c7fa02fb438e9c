package enforcement

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/toolgate/pkg/limits"
)

// Action defines what to do when a request is denied.
type Action string

const (
	// ActionBlock returns the deny to the caller.
	ActionBlock Action = "block"

	// ActionQueue waits for the advised retry delay and checks again.
	ActionQueue Action = "queue"

	// ActionAlert logs the deny but lets the request through.
	ActionAlert Action = "alert"
)

// ParseAction parses an action name. Empty selects ActionBlock.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(s)) {
	case ActionBlock, "":
		return ActionBlock, nil
	case ActionQueue:
		return ActionQueue, nil
	case ActionAlert:
		return ActionAlert, nil
	default:
		return "", fmt.Errorf("unknown enforcement action: %s", s)
	}
}

var (
	// ErrQueueFull means a queued request found no free waiting slot.
	ErrQueueFull = errors.New("admission queue full")

	// ErrQueueTimeout means a queued request was still denied when the
	// queue timeout expired.
	ErrQueueTimeout = errors.New("admission queue timeout")
)

// Config contains configuration for the enforcer.
type Config struct {
	// DefaultAction is the action taken on deny.
	DefaultAction Action

	// QueueDepth is the maximum number of requests waiting at once (when action=queue).
	QueueDepth int

	// QueueTimeout bounds how long a queued request waits in total.
	QueueTimeout time.Duration

	// Logger receives alert and queue logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// CheckFunc re-runs the admission check for a queued request.
type CheckFunc func() (*limits.Decision, error)

// Result contains the result of an enforcement action.
type Result struct {
	// Allowed indicates if the request should proceed.
	Allowed bool

	// Action is the enforcement action that was taken.
	Action Action

	// Decision is the last admission decision observed.
	Decision *limits.Decision

	// Reason explains why the request was blocked (if Allowed=false).
	Reason string

	// RetryAfter suggests how long to wait before retrying (if Allowed=false).
	RetryAfter time.Duration

	// AlertMessage contains the alert message (if action=alert).
	AlertMessage string

	// Attempts counts re-checks made while queued.
	Attempts int

	// Err is ErrQueueFull or ErrQueueTimeout when queuing gave up.
	Err error
}
