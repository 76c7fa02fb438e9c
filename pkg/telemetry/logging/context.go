package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// SessionKey is the context key for session identifiers.
	SessionKey contextKey = "session"

	// ToolKey is the context key for tool names.
	ToolKey contextKey = "tool"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithSession adds a session identifier to the context.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// GetSession retrieves the session identifier from the context.
func GetSession(ctx context.Context) string {
	if session, ok := ctx.Value(SessionKey).(string); ok {
		return session
	}
	return ""
}

// WithTool adds a tool name to the context.
func WithTool(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, ToolKey, tool)
}

// GetTool retrieves the tool name from the context.
func GetTool(ctx context.Context) string {
	if tool, ok := ctx.Value(ToolKey).(string); ok {
		return tool
	}
	return ""
}

// Attrs extracts the request ID from ctx as key-value pairs suitable for
// slog. Session and tool are left out because call sites log them
// explicitly. The returned slice is always freshly allocated.
func Attrs(ctx context.Context) []any {
	fields := make([]any, 0, 2)
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	return fields
}

// FromContext returns logger with every context field attached.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	var fields []any
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if session := GetSession(ctx); session != "" {
		fields = append(fields, "session", session)
	}
	if tool := GetTool(ctx); tool != "" {
		fields = append(fields, "tool", tool)
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
