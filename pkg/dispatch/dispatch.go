package dispatch

import (
	"context"
)

// ToolCall is one tool invocation routed through the dispatcher.
type ToolCall struct {
	// SessionID identifies the calling session.
	SessionID string `json:"session_id"`

	// ToolName is the tool being invoked.
	ToolName string `json:"tool_name"`

	// Category is the tool category. Empty means "general".
	Category string `json:"category,omitempty"`

	// IPAddress is the caller address, if known.
	IPAddress string `json:"ip_address,omitempty"`

	// Arguments are passed through to the tool untouched.
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is what a tool returns.
type ToolResult struct {
	Content  any               `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Handler executes a tool call.
type Handler func(ctx context.Context, call *ToolCall) (*ToolResult, error)

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain wraps h with mws. The first middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
