package enforcement

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/toolgate/pkg/limits"
)

func denied(retryAfter time.Duration) *limits.Decision {
	return &limits.Decision{
		Allowed: false,
		Message: "tool rate limit exceeded for \"nl_query\": 5 requests per 60 seconds",
		Info: limits.DecisionInfo{
			SessionID:  "s1",
			ToolName:   "nl_query",
			DeniedBy:   limits.DimensionTool,
			RetryAfter: retryAfter,
		},
	}
}

func allowed() *limits.Decision {
	return &limits.Decision{Allowed: true, Info: limits.DecisionInfo{SessionID: "s1"}}
}

func TestNewEnforcer_Defaults(t *testing.T) {
	enforcer := NewEnforcer(Config{})

	config := enforcer.GetConfig()
	if config.DefaultAction != ActionBlock {
		t.Errorf("Expected default action Block, got %s", config.DefaultAction)
	}
	if config.QueueDepth != 100 {
		t.Errorf("Expected queue depth 100, got %d", config.QueueDepth)
	}
	if config.QueueTimeout != 30*time.Second {
		t.Errorf("Expected queue timeout 30s, got %v", config.QueueTimeout)
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		input   string
		want    Action
		wantErr bool
	}{
		{"", ActionBlock, false},
		{"block", ActionBlock, false},
		{"QUEUE", ActionQueue, false},
		{"alert", ActionAlert, false},
		{"downgrade", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAction(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAction(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestEnforcer_AllowedPassesThrough(t *testing.T) {
	for _, action := range []Action{ActionBlock, ActionAlert, ActionQueue} {
		enforcer := NewEnforcer(Config{DefaultAction: action})

		result, err := enforcer.Enforce(context.Background(), allowed(), nil)
		if err != nil {
			t.Fatalf("Enforce failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("%s: expected allowed decision to pass", action)
		}
	}
}

func TestEnforcer_Block(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionBlock})

	result, err := enforcer.Enforce(context.Background(), denied(30*time.Second), nil)
	if err != nil {
		t.Fatalf("Enforce failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected request to be blocked")
	}
	if result.Action != ActionBlock {
		t.Errorf("Expected action Block, got %s", result.Action)
	}
	if !strings.Contains(result.Reason, "5 requests per 60 seconds") {
		t.Errorf("Expected reason to carry the deny message, got %s", result.Reason)
	}
	if result.RetryAfter != 30*time.Second {
		t.Errorf("Expected retry after 30s, got %v", result.RetryAfter)
	}
}

func TestEnforcer_Alert(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionAlert})

	result, err := enforcer.Enforce(context.Background(), denied(time.Second), nil)
	if err != nil {
		t.Fatalf("Enforce failed: %v", err)
	}

	if !result.Allowed {
		t.Error("Expected alert to allow the request")
	}
	if result.Action != ActionAlert {
		t.Errorf("Expected action Alert, got %s", result.Action)
	}
	if result.AlertMessage == "" {
		t.Error("Expected alert message")
	}
}

func TestEnforcer_Queue_AdmittedOnRecheck(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionQueue, QueueTimeout: time.Second})

	var calls atomic.Int32
	recheck := func() (*limits.Decision, error) {
		if calls.Add(1) < 3 {
			return denied(time.Millisecond), nil
		}
		return allowed(), nil
	}

	result, err := enforcer.Enforce(context.Background(), denied(time.Millisecond), recheck)
	if err != nil {
		t.Fatalf("Enforce failed: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Expected request admitted after queuing, got %s", result.Reason)
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if enforcer.QueueLength() != 0 {
		t.Errorf("Expected queue slot released, got %d", enforcer.QueueLength())
	}
}

func TestEnforcer_Queue_Timeout(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionQueue, QueueTimeout: 50 * time.Millisecond})

	recheck := func() (*limits.Decision, error) {
		return denied(5 * time.Millisecond), nil
	}

	result, err := enforcer.Enforce(context.Background(), denied(5*time.Millisecond), recheck)
	if err != nil {
		t.Fatalf("Enforce failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected request to time out")
	}
	if !errors.Is(result.Err, ErrQueueTimeout) {
		t.Errorf("Expected ErrQueueTimeout, got %v", result.Err)
	}
	if result.Attempts == 0 {
		t.Error("Expected at least one re-check before timing out")
	}
}

func TestEnforcer_Queue_LongRetryTimesOut(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionQueue, QueueTimeout: 20 * time.Millisecond})

	recheck := func() (*limits.Decision, error) {
		t.Error("Recheck should not run before the advised delay")
		return allowed(), nil
	}

	result, err := enforcer.Enforce(context.Background(), denied(time.Minute), recheck)
	if err != nil {
		t.Fatalf("Enforce failed: %v", err)
	}
	if result.Allowed || !errors.Is(result.Err, ErrQueueTimeout) {
		t.Errorf("Expected queue timeout, got %+v", result)
	}
}

func TestEnforcer_Queue_Full(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionQueue, QueueDepth: 1, QueueTimeout: time.Second})

	release := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		var once atomic.Bool
		enforcer.Enforce(context.Background(), denied(time.Millisecond), func() (*limits.Decision, error) {
			if once.CompareAndSwap(false, true) {
				close(entered)
			}
			<-release
			return allowed(), nil
		})
	}()

	<-entered

	result, err := enforcer.Enforce(context.Background(), denied(time.Millisecond), func() (*limits.Decision, error) {
		return allowed(), nil
	})
	if err != nil {
		t.Fatalf("Enforce failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected second request to be rejected")
	}
	if !errors.Is(result.Err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", result.Err)
	}

	close(release)
	<-done
}

func TestEnforcer_Queue_ContextCanceled(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionQueue, QueueTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := enforcer.Enforce(ctx, denied(time.Minute), func() (*limits.Decision, error) {
		return allowed(), nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestEnforcer_Queue_RecheckError(t *testing.T) {
	enforcer := NewEnforcer(Config{DefaultAction: ActionQueue, QueueTimeout: time.Second})

	boom := errors.New("boom")
	_, err := enforcer.Enforce(context.Background(), denied(time.Millisecond), func() (*limits.Decision, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected recheck error, got %v", err)
	}
}

func TestEnforcer_Queue_WithManager(t *testing.T) {
	manager, err := limits.NewManager(limits.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer manager.Close()

	enforcer := NewEnforcer(Config{DefaultAction: ActionQueue, QueueTimeout: 30 * time.Millisecond})

	ctx := context.Background()
	req := limits.Request{SessionID: "s1", ToolName: "nl_query"}
	for i := 0; i < 5; i++ {
		manager.Check(ctx, req)
	}

	d, err := manager.Check(ctx, req)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	// The tool window needs a full minute to free up, so the queue gives up.
	result, err := enforcer.Enforce(ctx, d, func() (*limits.Decision, error) {
		return manager.Check(ctx, req)
	})
	if err != nil {
		t.Fatalf("Enforce failed: %v", err)
	}
	if result.Allowed || !errors.Is(result.Err, ErrQueueTimeout) {
		t.Errorf("Expected queue timeout, got %+v", result)
	}
}
