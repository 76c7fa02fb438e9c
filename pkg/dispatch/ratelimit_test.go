package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/enforcement"
	"mercator-hq/toolgate/pkg/telemetry/logging"
)

func newManager(t *testing.T) *limits.Manager {
	t.Helper()

	m, err := limits.NewManager(limits.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func echoHandler(calls *atomic.Int32) Handler {
	return func(ctx context.Context, call *ToolCall) (*ToolResult, error) {
		calls.Add(1)
		return &ToolResult{
			Content: call.ToolName,
			Metadata: map[string]string{
				"session": logging.GetSession(ctx),
				"tool":    logging.GetTool(ctx),
			},
		}, nil
	}
}

func TestRateLimit_AllowsAndDenies(t *testing.T) {
	var calls atomic.Int32
	handler := Chain(echoHandler(&calls), RateLimit(newManager(t)))

	ctx := context.Background()
	call := &ToolCall{SessionID: "s1", ToolName: "nl_query"}

	for i := 0; i < 5; i++ {
		result, err := handler(ctx, call)
		if err != nil {
			t.Fatalf("Call %d failed: %v", i+1, err)
		}
		if result.Metadata["session"] != "s1" || result.Metadata["tool"] != "nl_query" {
			t.Errorf("Expected context fields set for handler, got %v", result.Metadata)
		}
	}

	_, err := handler(ctx, call)
	if err == nil {
		t.Fatal("Expected sixth call to be rejected")
	}
	if !errors.Is(err, limits.ErrRateLimitExceeded) {
		t.Errorf("Expected ErrRateLimitExceeded, got %v", err)
	}

	rlErr, ok := AsRateLimitError(err)
	if !ok {
		t.Fatalf("Expected *RateLimitError, got %T", err)
	}
	if rlErr.Dimension() != limits.DimensionTool {
		t.Errorf("Expected dimension %s, got %s", limits.DimensionTool, rlErr.Dimension())
	}
	if rlErr.RetryAfter() <= 0 {
		t.Errorf("Expected positive retry after, got %v", rlErr.RetryAfter())
	}

	if calls.Load() != 5 {
		t.Errorf("Expected handler invoked 5 times, got %d", calls.Load())
	}
}

func TestRateLimit_InvalidRequest(t *testing.T) {
	var calls atomic.Int32
	handler := Chain(echoHandler(&calls), RateLimit(newManager(t)))

	_, err := handler(context.Background(), &ToolCall{ToolName: "nl_query"})
	if !errors.Is(err, limits.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
	if errors.Is(err, limits.ErrRateLimitExceeded) {
		t.Error("Invalid request should not look like a rate limit")
	}
	if calls.Load() != 0 {
		t.Error("Expected handler not to be invoked")
	}
}

func TestRateLimit_SessionFromContext(t *testing.T) {
	var calls atomic.Int32
	manager := newManager(t)
	handler := Chain(echoHandler(&calls), RateLimit(manager))

	ctx := logging.WithSession(context.Background(), "ctx-session")
	if _, err := handler(ctx, &ToolCall{ToolName: "frobnicate"}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if _, ok := manager.SessionStats("ctx-session"); !ok {
		t.Error("Expected session id taken from context")
	}
}

func TestRateLimit_CustomExtractor(t *testing.T) {
	var calls atomic.Int32
	manager := newManager(t)

	extractor := func(ctx context.Context, call *ToolCall) (limits.Request, error) {
		session, _ := call.Arguments["session"].(string)
		if session == "" {
			return limits.Request{}, errors.New("no session argument")
		}
		return limits.Request{SessionID: session, ToolName: call.ToolName, Category: "heavy_computation"}, nil
	}
	handler := Chain(echoHandler(&calls), RateLimit(manager, WithExtractor(extractor)))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := handler(ctx, &ToolCall{ToolName: "render", Arguments: map[string]any{"session": "arg-session"}}); err != nil {
			t.Fatalf("Call %d failed: %v", i+1, err)
		}
	}

	_, err := handler(ctx, &ToolCall{ToolName: "render", Arguments: map[string]any{"session": "arg-session"}})
	rlErr, ok := AsRateLimitError(err)
	if !ok {
		t.Fatalf("Expected *RateLimitError, got %v", err)
	}
	if rlErr.Dimension() != limits.DimensionCategory {
		t.Errorf("Expected category denial, got %s", rlErr.Dimension())
	}

	if _, err := handler(ctx, &ToolCall{ToolName: "render"}); err == nil {
		t.Error("Expected extractor error")
	}
}

func TestRateLimit_AlertEnforcer(t *testing.T) {
	var calls atomic.Int32
	enforcer := enforcement.NewEnforcer(enforcement.Config{DefaultAction: enforcement.ActionAlert})
	handler := Chain(echoHandler(&calls), RateLimit(newManager(t), WithEnforcer(enforcer)))

	ctx := context.Background()
	call := &ToolCall{SessionID: "s1", ToolName: "nl_query"}
	for i := 0; i < 8; i++ {
		if _, err := handler(ctx, call); err != nil {
			t.Fatalf("Call %d failed under alert policy: %v", i+1, err)
		}
	}
	if calls.Load() != 8 {
		t.Errorf("Expected 8 handler calls, got %d", calls.Load())
	}
}

func TestRateLimit_QueueEnforcerTimeout(t *testing.T) {
	var calls atomic.Int32
	enforcer := enforcement.NewEnforcer(enforcement.Config{
		DefaultAction: enforcement.ActionQueue,
		QueueTimeout:  20 * time.Millisecond,
	})
	handler := Chain(echoHandler(&calls), RateLimit(newManager(t), WithEnforcer(enforcer)))

	ctx := context.Background()
	call := &ToolCall{SessionID: "s1", ToolName: "nl_query"}
	for i := 0; i < 5; i++ {
		handler(ctx, call)
	}

	_, err := handler(ctx, call)
	if !errors.Is(err, enforcement.ErrQueueTimeout) {
		t.Errorf("Expected ErrQueueTimeout, got %v", err)
	}
	if !errors.Is(err, limits.ErrRateLimitExceeded) {
		t.Errorf("Expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, call *ToolCall) (*ToolResult, error) {
				order = append(order, name)
				return next(ctx, call)
			}
		}
	}

	handler := Chain(func(ctx context.Context, call *ToolCall) (*ToolResult, error) {
		order = append(order, "handler")
		return &ToolResult{}, nil
	}, mw("first"), mw("second"))

	handler(context.Background(), &ToolCall{})

	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, order)
			break
		}
	}
}
