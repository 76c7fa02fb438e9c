package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func toolRequest(session, tool string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/tools/"+tool, nil)
	req.Header.Set(SessionIDHeader, session)
	req.RemoteAddr = "10.0.0.7:41234"
	return req
}

func TestRateLimitMiddleware_DeniesWith429(t *testing.T) {
	var served int
	handler := RateLimitMiddleware(RateLimitConfig{Checker: newManager(t)})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			served++
			if logging.GetSession(r.Context()) != "s1" {
				t.Errorf("Expected session in context, got %q", logging.GetSession(r.Context()))
			}
			w.WriteHeader(http.StatusOK)
		}),
	)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, toolRequest("s1", "nl_query"))
		if w.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, toolRequest("s1", "nl_query"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if got := w.Header().Get(DimensionHeader); got != string(limits.DimensionTool) {
		t.Errorf("Expected dimension header %s, got %q", limits.DimensionTool, got)
	}
	if got := w.Header().Get(LimitHeader); got != "5" {
		t.Errorf("Expected limit header 5, got %q", got)
	}
	if w.Header().Get(RetryAfterHeader) == "" {
		t.Error("Expected Retry-After header")
	}

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Expected JSON body: %v", err)
	}
	if body.Error.Type != ErrorTypeRateLimitExceeded {
		t.Errorf("Expected type %s, got %s", ErrorTypeRateLimitExceeded, body.Error.Type)
	}
	if body.Error.RetryAfterSeconds <= 0 {
		t.Errorf("Expected positive retry_after_seconds, got %v", body.Error.RetryAfterSeconds)
	}
	if served != 5 {
		t.Errorf("Expected 5 requests served, got %d", served)
	}
}

func TestRateLimitMiddleware_MissingSession(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{Checker: newManager(t)})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be reached")
		}),
	)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tools/nl_query", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestRateLimitMiddleware_UsesRemoteIP(t *testing.T) {
	manager := newManager(t)
	handler := RateLimitMiddleware(RateLimitConfig{Checker: manager})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), toolRequest("s1", "frobnicate"))

	info, ok := manager.SessionStats("s1")
	if !ok {
		t.Fatal("Expected session tracked")
	}
	if info.IPAddress != "10.0.0.7" {
		t.Errorf("Expected IP 10.0.0.7, got %q", info.IPAddress)
	}
}

func TestForwardedForExtractor(t *testing.T) {
	extract := ForwardedForExtractor(DefaultRequestExtractor)

	r := toolRequest("s1", "frobnicate")
	r.Header.Set(ForwardedForHeader, "203.0.113.9, 10.0.0.1")
	r.Header.Set(ToolNameHeader, "explicit_tool")
	r.Header.Set(ToolCategoryHeader, "file_operations")

	req, err := extract(r)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if req.IPAddress != "203.0.113.9" {
		t.Errorf("Expected forwarded IP, got %q", req.IPAddress)
	}
	if req.ToolName != "explicit_tool" {
		t.Errorf("Expected tool header to win over path, got %q", req.ToolName)
	}
	if req.Category != "file_operations" {
		t.Errorf("Expected category header, got %q", req.Category)
	}
}

func TestRateLimitMiddleware_AlertEnforcer(t *testing.T) {
	enforcer := enforcement.NewEnforcer(enforcement.Config{DefaultAction: enforcement.ActionAlert})
	handler := RateLimitMiddleware(RateLimitConfig{Checker: newManager(t), Enforcer: enforcer})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for i := 0; i < 7; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, toolRequest("s1", "nl_query"))
		if w.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200 under alert policy, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimitMiddleware_QueueEnforcerGivesUp(t *testing.T) {
	enforcer := enforcement.NewEnforcer(enforcement.Config{
		DefaultAction: enforcement.ActionQueue,
		QueueTimeout:  20 * time.Millisecond,
	})
	handler := RateLimitMiddleware(RateLimitConfig{Checker: newManager(t), Enforcer: enforcer})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), toolRequest("s1", "nl_query"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, toolRequest("s1", "nl_query"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after queue timeout, got %d", w.Code)
	}
}
