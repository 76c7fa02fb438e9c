package ratelimit

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewRateLimit_Validation(t *testing.T) {
	tests := []struct {
		name     string
		requests int
		window   int
		burst    int
		wantErr  bool
	}{
		{"valid", 100, 60, 20, false},
		{"valid without burst", 5, 60, 0, false},
		{"zero requests", 0, 60, 0, true},
		{"negative requests", -1, 60, 0, true},
		{"zero window", 10, 0, 0, true},
		{"negative burst", 10, 60, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRateLimit(tt.requests, tt.window, tt.burst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRateLimit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLimit) {
				t.Errorf("Expected error to wrap ErrInvalidLimit, got %v", err)
			}
		})
	}
}

func TestRateLimit_Derived(t *testing.T) {
	limit := MustRateLimit(100, 60, 20)

	if limit.Capacity() != 120 {
		t.Errorf("Expected capacity 120, got %f", limit.Capacity())
	}
	if math.Abs(limit.RefillRate()-100.0/60.0) > tolerance {
		t.Errorf("Expected refill rate 1.667, got %f", limit.RefillRate())
	}
	if limit.Window() != time.Minute {
		t.Errorf("Expected 1m window, got %v", limit.Window())
	}
	if limit.String() != "100 requests per 60 seconds" {
		t.Errorf("Unexpected string %q", limit.String())
	}
}

func TestMustRateLimit_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected MustRateLimit to panic on invalid input")
		}
	}()
	MustRateLimit(0, 60, 0)
}

func TestLimitError_Message(t *testing.T) {
	err := RateLimit{Requests: 5, WindowSeconds: -3}.Validate()

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Expected *LimitError, got %T", err)
	}
	if limitErr.Field != "window_seconds" {
		t.Errorf("Expected field window_seconds, got %s", limitErr.Field)
	}
}
