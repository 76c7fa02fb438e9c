package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidLimit is returned when a RateLimit has non-positive requests or
// window, or a negative burst allowance.
var ErrInvalidLimit = errors.New("invalid rate limit")

// RateLimit declares the limit for one limiting dimension.
//
// A RateLimit is immutable once validated. Token-bucket dimensions derive
// their capacity and refill rate from it; sliding-window dimensions use
// Requests and WindowSeconds directly.
type RateLimit struct {
	// Requests is the number of requests allowed per window.
	Requests int `yaml:"requests" json:"requests"`

	// WindowSeconds is the window length in seconds.
	WindowSeconds int `yaml:"window_seconds" json:"window_seconds"`

	// BurstAllowance is extra token-bucket capacity above Requests.
	// Ignored by sliding-window dimensions.
	BurstAllowance int `yaml:"burst_allowance,omitempty" json:"burst_allowance,omitempty"`
}

// NewRateLimit creates a validated RateLimit.
//
// Example:
//
//	limit, err := NewRateLimit(100, 60, 20) // 100/min, burst to 120
func NewRateLimit(requests, windowSeconds, burstAllowance int) (RateLimit, error) {
	limit := RateLimit{
		Requests:       requests,
		WindowSeconds:  windowSeconds,
		BurstAllowance: burstAllowance,
	}
	if err := limit.Validate(); err != nil {
		return RateLimit{}, err
	}
	return limit, nil
}

// MustRateLimit is like NewRateLimit but panics on an invalid limit.
// It is intended for static tables.
func MustRateLimit(requests, windowSeconds, burstAllowance int) RateLimit {
	limit, err := NewRateLimit(requests, windowSeconds, burstAllowance)
	if err != nil {
		panic(err)
	}
	return limit
}

// Validate checks the limit invariants.
func (r RateLimit) Validate() error {
	switch {
	case r.Requests <= 0:
		return &LimitError{Field: "requests", Value: r.Requests, Reason: "must be positive", Err: ErrInvalidLimit}
	case r.WindowSeconds <= 0:
		return &LimitError{Field: "window_seconds", Value: r.WindowSeconds, Reason: "must be positive", Err: ErrInvalidLimit}
	case r.BurstAllowance < 0:
		return &LimitError{Field: "burst_allowance", Value: r.BurstAllowance, Reason: "must be non-negative", Err: ErrInvalidLimit}
	}
	return nil
}

// Window returns the window as a duration.
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Capacity returns the token-bucket capacity: requests plus burst.
func (r RateLimit) Capacity() float64 {
	return float64(r.Requests + r.BurstAllowance)
}

// RefillRate returns the token-bucket refill rate in tokens per second.
func (r RateLimit) RefillRate() float64 {
	return float64(r.Requests) / float64(r.WindowSeconds)
}

// IsZero reports whether the limit is unset.
func (r RateLimit) IsZero() bool {
	return r == RateLimit{}
}

// String renders the limit as "N requests per W seconds".
func (r RateLimit) String() string {
	return fmt.Sprintf("%d requests per %d seconds", r.Requests, r.WindowSeconds)
}

// LimitError describes which field of a RateLimit failed validation.
type LimitError struct {
	// Field is the offending field name.
	Field string

	// Value is the rejected value.
	Value int

	// Reason describes the violated constraint.
	Reason string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: %s %s, got %d", e.Err, e.Field, e.Reason, e.Value)
}

// Unwrap returns the underlying error for error wrapping.
func (e *LimitError) Unwrap() error {
	return e.Err
}
