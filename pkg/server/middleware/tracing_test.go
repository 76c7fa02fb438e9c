package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/telemetry/tracing"
)

func newRecordingTracer(t *testing.T) (*tracing.Tracer, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tracer := tracing.NewWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { tracer.Shutdown(context.Background()) })
	return tracer, recorder
}

func TestTracingMiddleware_NamesSpanAfterRoute(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if tracing.TraceID(r.Context()) == "" {
			t.Error("Expected trace ID in handler context")
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestIDMiddleware(TracingMiddleware(tracer)(mux))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil))

	if w.Header().Get(TraceIDHeader) == "" {
		t.Error("Expected X-Trace-ID header")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /v1/sessions/{id}" {
		t.Errorf("Expected span named after route, got %q", span.Name())
	}

	attrs := make(map[string]string)
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[tracing.AttrHTTPStatusCode] != "200" {
		t.Errorf("Expected status 200 attribute, got %q", attrs[tracing.AttrHTTPStatusCode])
	}
	if attrs[tracing.AttrRequestID] == "" {
		t.Error("Expected request ID attribute")
	}
	if w.Header().Get(TraceIDHeader) != span.SpanContext().TraceID().String() {
		t.Errorf("Expected header to carry span trace ID")
	}
}

func TestTracingMiddleware_ContinuesCallerTrace(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", parent)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Expected caller trace ID, got %s", got)
	}
	if got := spans[0].Parent().SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("Expected caller span as parent, got %s", got)
	}
}

func TestTracingMiddleware_ServerErrorStatus(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/check", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", spans[0].Status().Code)
	}
	if spans[0].Name() != "HTTP POST" {
		t.Errorf("Expected unrouted span name, got %q", spans[0].Name())
	}
}

func TestTracingMiddleware_NilTracer(t *testing.T) {
	handler := TracingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if w.Header().Get(TraceIDHeader) != "" {
		t.Error("Expected no trace header without a tracer")
	}
}

func TestRateLimitMiddleware_RecordsDecisionOnSpan(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	handler := TracingMiddleware(tracer)(
		RateLimitMiddleware(RateLimitConfig{Checker: newManager(t)})(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		),
	)

	for i := 0; i < 6; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), toolRequest("s1", "nl_query"))
	}

	spans := recorder.Ended()
	if len(spans) != 6 {
		t.Fatalf("Expected 6 spans, got %d", len(spans))
	}

	attrs := make(map[string]string)
	for _, kv := range spans[5].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[tracing.AttrAllowed] != "false" {
		t.Errorf("Expected denied decision on span, got %q", attrs[tracing.AttrAllowed])
	}
	if attrs[tracing.AttrDeniedBy] != string(limits.DimensionTool) {
		t.Errorf("Expected tool dimension, got %q", attrs[tracing.AttrDeniedBy])
	}
	if attrs[tracing.AttrHTTPStatusCode] != "429" {
		t.Errorf("Expected 429 status attribute, got %q", attrs[tracing.AttrHTTPStatusCode])
	}
}
