package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_DefaultTimeout(t *testing.T) {
	if c := New(0); c.checkTimeout != DefaultCheckTimeout {
		t.Errorf("Expected default timeout, got %v", c.checkTimeout)
	}
	if c := New(time.Second); c.checkTimeout != time.Second {
		t.Errorf("Expected 1s timeout, got %v", c.checkTimeout)
	}
}

func TestChecker_RegisterAndList(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("journal", func(ctx context.Context) error { return nil })
	c.RegisterCheck("limiter", func(ctx context.Context) error { return nil })
	c.RegisterCheck("journal", func(ctx context.Context) error { return nil })

	names := c.ListChecks()
	if len(names) != 2 || names[0] != "journal" || names[1] != "limiter" {
		t.Errorf("Expected [journal limiter], got %v", names)
	}

	c.UnregisterCheck("journal")
	if len(c.ListChecks()) != 1 {
		t.Errorf("Expected 1 check after unregister, got %v", c.ListChecks())
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{
			name:   "no checks",
			checks: nil,
			want:   StatusOK,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"a": func(ctx context.Context) error { return nil },
				"b": func(ctx context.Context) error { return nil },
			},
			want: StatusOK,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"a": func(ctx context.Context) error { return nil },
				"b": func(ctx context.Context) error { return errors.New("journal closed") },
			},
			want: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}

			status := c.Readiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, status.Status)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("Expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
		})
	}
}

func TestChecker_ReadinessTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	start := time.Now()
	status := c.Readiness(context.Background())
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Expected readiness to return at the check timeout")
	}
	if got := status.Checks["slow"]; got.Status != StatusUnhealthy || got.Message != ErrCheckTimeout.Error() {
		t.Errorf("Expected timeout result, got %+v", got)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("journal", func(ctx context.Context) error { return errors.New("disk full") })

	w := httptest.NewRecorder()
	c.LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected liveness 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	c.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected readiness 503, got %d", w.Code)
	}
	var status Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Expected JSON body: %v", err)
	}
	if status.Checks["journal"].Message != "disk full" {
		t.Errorf("Expected failing check message, got %+v", status.Checks)
	}

	w = httptest.NewRecorder()
	c.ReadinessHandler()(w, httptest.NewRequest(http.MethodHead, "/health", nil))
	if w.Body.Len() != 0 {
		t.Error("Expected empty body for HEAD")
	}
}
