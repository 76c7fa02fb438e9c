package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/toolgate/pkg/telemetry/logging"
)

func TestRequestIDMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logging.GetRequestID(r.Context()) == "" {
			t.Error("Request ID should be stored in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RequestIDMiddleware(handler)

	t.Run("generates request ID when not provided", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		requestID := w.Header().Get(RequestIDHeader)
		if len(requestID) != 36 {
			t.Errorf("Expected UUID request ID, got %q", requestID)
		}
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		customID := "custom-request-id-12345"
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, customID)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != customID {
			t.Errorf("Request ID = %v, want %v", got, customID)
		}
	})

	t.Run("generates unique IDs for different requests", func(t *testing.T) {
		w1 := httptest.NewRecorder()
		wrapped.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/test", nil))
		w2 := httptest.NewRecorder()
		wrapped.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w1.Header().Get(RequestIDHeader) == w2.Header().Get(RequestIDHeader) {
			t.Error("Request IDs should be unique")
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		wrapped := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status code = %v, want %v", w.Code, http.StatusInternalServerError)
		}

		var body ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("Expected JSON error body: %v", err)
		}
		if body.Error.Type != ErrorTypeServerError {
			t.Errorf("Expected type %s, got %s", ErrorTypeServerError, body.Error.Type)
		}
		if strings.Contains(body.Error.Message, "test panic") {
			t.Error("Panic value must not leak to the client")
		}
	})

	t.Run("passes through normal requests", func(t *testing.T) {
		wrapped := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}))

		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w.Code != http.StatusOK || w.Body.String() != "OK" {
			t.Errorf("Expected 200 OK, got %d %q", w.Code, w.Body.String())
		}
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	wrapped := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("Expected WARN for 4xx, got %v", entry["level"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("Expected status 418, got %v", entry["status"])
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("Expected request_id req-1, got %v", entry["request_id"])
	}
	if entry["component"] != "server.http" {
		t.Errorf("Expected component server.http, got %v", entry["component"])
	}
}
