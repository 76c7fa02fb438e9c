package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of every error returned by the server.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Dimension names the limiting dimension for rate_limit_exceeded errors.
	Dimension string `json:"dimension,omitempty"`

	// RetryAfterSeconds is the advisory retry delay for rate_limit_exceeded errors.
	RetryAfterSeconds float64 `json:"retry_after_seconds,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest    = "invalid_request_error"
	ErrorTypeNotFound          = "not_found"
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"
	ErrorTypeServerError       = "server_error"
	ErrorTypeUnavailable       = "service_unavailable"
	ErrorTypeAuthentication    = "authentication_error"
)

// WriteError writes an ErrorResponse with the given status.
func WriteError(w http.ResponseWriter, status int, errType, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
