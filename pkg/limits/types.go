package limits

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mercator-hq/toolgate/pkg/limits/ratelimit"
)

// Dimension is one of the four independent limiting dimensions.
type Dimension string

const (
	// DimensionSession limits every request of a session with a token bucket.
	DimensionSession Dimension = "session_global"

	// DimensionTool limits a session's calls to one tool with a sliding window.
	DimensionTool Dimension = "tool_specific"

	// DimensionCategory limits a session's calls to a tool category with a
	// sliding window.
	DimensionCategory Dimension = "category_based"

	// DimensionIP limits every request from an IP address with a token bucket.
	DimensionIP Dimension = "ip_based"
)

// Dimensions lists all dimensions in check order.
var Dimensions = []Dimension{DimensionSession, DimensionTool, DimensionCategory, DimensionIP}

// DefaultCategory is used when a request does not name a category.
const DefaultCategory = "general"

// Request identifies one tool invocation to be admitted.
type Request struct {
	// SessionID identifies the calling session. Required.
	SessionID string `json:"session_id"`

	// ToolName is the tool being invoked. Required.
	ToolName string `json:"tool_name"`

	// Category is the tool category. Empty means DefaultCategory.
	Category string `json:"category,omitempty"`

	// IPAddress is the caller address. Empty skips the IP check.
	IPAddress string `json:"ip_address,omitempty"`
}

// Decision is the result of an admission check. A deny is an ordinary
// Decision with Allowed=false, never an error.
type Decision struct {
	// Allowed indicates if the request is permitted.
	Allowed bool `json:"allowed"`

	// Message explains the denial. Empty when allowed.
	Message string `json:"message,omitempty"`

	// Info carries diagnostic metadata.
	Info DecisionInfo `json:"info"`
}

// DecisionInfo contains diagnostic metadata for a Decision.
type DecisionInfo struct {
	SessionID string `json:"session_id"`
	ToolName  string `json:"tool_name"`
	Category  string `json:"category"`
	IPAddress string `json:"ip_address,omitempty"`

	// ToolRule is the name of the tool rule the request resolved to.
	ToolRule string `json:"tool_rule"`

	// Checks lists the dimensions evaluated, in order.
	Checks []Dimension `json:"checks"`

	// DeniedBy is the dimension that rejected the request.
	DeniedBy Dimension `json:"denied_by,omitempty"`

	// Limit is the limit that rejected the request.
	Limit *ratelimit.RateLimit `json:"limit,omitempty"`

	// RetryAfter is the advisory minimum wait before retrying. It is
	// encoded as retry_after_seconds.
	RetryAfter time.Duration `json:"-"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`
}

type decisionInfoJSON struct {
	decisionInfoFields
	RetryAfterSeconds float64 `json:"retry_after_seconds,omitempty"`
}

type decisionInfoFields DecisionInfo

// MarshalJSON encodes RetryAfter as fractional seconds, the unit the HTTP
// 429 body uses.
func (i DecisionInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(decisionInfoJSON{
		decisionInfoFields: decisionInfoFields(i),
		RetryAfterSeconds:  i.RetryAfter.Seconds(),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (i *DecisionInfo) UnmarshalJSON(data []byte) error {
	var aux decisionInfoJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = DecisionInfo(aux.decisionInfoFields)
	i.RetryAfter = time.Duration(aux.RetryAfterSeconds * float64(time.Second))
	return nil
}

// SessionInfo is a snapshot of one session's bookkeeping.
type SessionInfo struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	TotalRequests uint64    `json:"total_requests"`
	Violations    uint64    `json:"violations"`
	IPAddress     string    `json:"ip_address,omitempty"`
}

// SystemStats summarizes the limiter's tracked state.
type SystemStats struct {
	ActiveSessions int `json:"active_sessions"`
	TotalBuckets   int `json:"total_buckets"`
	TotalWindows   int `json:"total_windows"`

	// TrackedTimestamps is the number of timestamps held by all sliding
	// windows, an approximation of memory use.
	TrackedTimestamps int `json:"tracked_timestamps"`

	BucketsByDimension map[Dimension]int `json:"buckets_by_dimension"`
	WindowsByDimension map[Dimension]int `json:"windows_by_dimension"`
}

var (
	// ErrInvalidRequest is returned when a request lacks a session ID or tool name.
	ErrInvalidRequest = errors.New("invalid admission request")

	// ErrRateLimitExceeded identifies rate-limit denials surfaced as errors by
	// adapter layers.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrConfigInvalid is returned when the limits table is invalid.
	ErrConfigInvalid = errors.New("invalid limits configuration")
)

// ConfigError points at the invalid entry of a limits table.
type ConfigError struct {
	// Path is the dotted path of the entry, e.g. "tools.ai_features".
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrConfigInvalid, e.Path, e.Err)
}

// Unwrap returns both the configuration sentinel and the cause.
func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfigInvalid, e.Err}
}
