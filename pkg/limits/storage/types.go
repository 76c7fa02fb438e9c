package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Backend is an append-mostly journal of rate-limit violations.
// Implementations must be thread-safe.
type Backend interface {
	// Record appends a violation. ID and Dimension are required.
	Record(ctx context.Context, v *Violation) error

	// List returns violations matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Violation, error)

	// Count returns the number of violations matching the filter.
	// Filter.Limit is ignored.
	Count(ctx context.Context, filter Filter) (int, error)

	// Cleanup removes violations that occurred before olderThan.
	// Returns the number of entries deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Violation is one denied admission check.
type Violation struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	SessionID string `json:"session_id"`
	ToolName  string `json:"tool_name"`
	Category  string `json:"category,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	// Dimension is the limiting dimension that denied the request.
	Dimension string `json:"dimension"`

	// Message is the human-readable deny reason.
	Message string `json:"message"`

	// RetryAfter is the advisory wait reported to the caller. It is encoded
	// as retry_after_seconds.
	RetryAfter time.Duration `json:"-"`

	// OccurredAt is when the check was made.
	OccurredAt time.Time `json:"occurred_at"`
}

type violationFields Violation

type violationJSON struct {
	violationFields
	RetryAfterSeconds float64 `json:"retry_after_seconds"`
}

// MarshalJSON encodes RetryAfter as fractional seconds.
func (v Violation) MarshalJSON() ([]byte, error) {
	return json.Marshal(violationJSON{
		violationFields:   violationFields(v),
		RetryAfterSeconds: v.RetryAfter.Seconds(),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Violation) UnmarshalJSON(data []byte) error {
	var aux violationJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = Violation(aux.violationFields)
	v.RetryAfter = time.Duration(aux.RetryAfterSeconds * float64(time.Second))
	return nil
}

// Filter selects violations. Zero fields match everything.
type Filter struct {
	SessionID string
	Dimension string

	// Since excludes violations before this time.
	Since time.Time

	// Limit caps the number of results. Zero means unlimited.
	Limit int
}

// matches reports whether v satisfies the filter.
func (f Filter) matches(v *Violation) bool {
	if f.SessionID != "" && v.SessionID != f.SessionID {
		return false
	}
	if f.Dimension != "" && v.Dimension != f.Dimension {
		return false
	}
	if !f.Since.IsZero() && v.OccurredAt.Before(f.Since) {
		return false
	}
	return true
}

// ErrClosed is returned when a closed backend is used.
var ErrClosed = errors.New("storage backend closed")

func validate(v *Violation) error {
	if v == nil {
		return errors.New("violation cannot be nil")
	}
	if v.ID == "" {
		return errors.New("violation id cannot be empty")
	}
	if v.Dimension == "" {
		return errors.New("dimension cannot be empty")
	}
	return nil
}
