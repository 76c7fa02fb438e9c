package ratelimit

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const tolerance = 1e-9

func TestTokenBucket_StartsFull(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(120, 100.0/60.0, clock.Now)

	if got := bucket.Tokens(); got != 120 {
		t.Errorf("Expected 120 tokens, got %f", got)
	}
	if bucket.Capacity() != 120 {
		t.Errorf("Expected capacity 120, got %f", bucket.Capacity())
	}
}

func TestTokenBucket_ConsumeUntilEmpty(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(10, 1, clock.Now)

	for i := 0; i < 10; i++ {
		if !bucket.Consume(1) {
			t.Fatalf("Expected consume %d to succeed", i+1)
		}
	}

	if bucket.Consume(1) {
		t.Error("Expected bucket to be empty")
	}
}

func TestTokenBucket_FailedConsumeLeavesTokens(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(5, 1, clock.Now)

	if !bucket.Consume(3) {
		t.Fatal("Expected to consume 3 tokens")
	}
	if bucket.Consume(3) {
		t.Fatal("Expected consume of 3 with 2 available to fail")
	}
	if got := bucket.Tokens(); math.Abs(got-2) > tolerance {
		t.Errorf("Expected 2 tokens after failed consume, got %f", got)
	}
}

func TestTokenBucket_RefillCorrectness(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(100, 2.5, clock.Now)

	bucket.Consume(100)
	clock.Advance(4 * time.Second)

	// tokens' = min(capacity, tokens + t * rate) = 0 + 4 * 2.5
	if got := bucket.Tokens(); math.Abs(got-10) > tolerance {
		t.Errorf("Expected 10 tokens after 4s, got %f", got)
	}

	clock.Advance(time.Hour)
	if got := bucket.Tokens(); got != 100 {
		t.Errorf("Expected refill capped at 100, got %f", got)
	}
}

func TestTokenBucket_Boundedness(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(20, 3, clock.Now)

	steps := []struct {
		advance time.Duration
		consume int
	}{
		{0, 5}, {100 * time.Millisecond, 30}, {2 * time.Second, 1},
		{0, 20}, {10 * time.Second, 0}, {time.Minute, 7}, {0, 19},
	}

	for i, step := range steps {
		clock.Advance(step.advance)
		bucket.Consume(step.consume)

		tokens := bucket.Tokens()
		if tokens < 0 || tokens > bucket.Capacity() {
			t.Fatalf("step %d: tokens %f outside [0, %f]", i, tokens, bucket.Capacity())
		}
	}
}

func TestTokenBucket_WaitTime(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(10, 10, clock.Now)

	if wait := bucket.WaitTime(5); wait != 0 {
		t.Errorf("Expected 0 wait with tokens available, got %v", wait)
	}

	bucket.Consume(10)

	// (5 - 0) / 10 = 0.5s
	if wait := bucket.WaitTime(5); !approxDuration(wait, 500*time.Millisecond) {
		t.Errorf("Expected ~500ms, got %v", wait)
	}

	clock.Advance(200 * time.Millisecond)
	if wait := bucket.WaitTime(5); !approxDuration(wait, 300*time.Millisecond) {
		t.Errorf("Expected ~300ms after partial refill, got %v", wait)
	}
}

func TestTokenBucket_NonPositiveN(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(10, 1, clock.Now)
	bucket.Consume(3)

	for _, n := range []int{0, -1, -5, -1000} {
		if bucket.Consume(n) {
			t.Errorf("Consume(%d): expected false, got true", n)
		}
		if wait := bucket.WaitTime(n); wait != 0 {
			t.Errorf("WaitTime(%d): expected 0, got %v", n, wait)
		}
		if got := bucket.Tokens(); got != 7 {
			t.Errorf("Consume(%d): expected tokens to stay at 7, got %f", n, got)
		}
	}

	if got := bucket.Tokens(); got > bucket.Capacity() {
		t.Errorf("Expected tokens <= capacity %f, got %f", bucket.Capacity(), got)
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(10, 1, clock.Now)

	bucket.Consume(10)
	bucket.Reset()

	if got := bucket.Tokens(); got != 10 {
		t.Errorf("Expected full bucket after reset, got %f", got)
	}
}

func TestTokenBucket_RealClockRefill(t *testing.T) {
	bucket := NewTokenBucket(10, 10)
	bucket.Consume(10)

	time.Sleep(150 * time.Millisecond)

	if !bucket.Consume(1) {
		t.Error("Expected bucket to have refilled")
	}
}

func TestTokenBucket_Concurrent(t *testing.T) {
	clock := newFakeClock()
	bucket := NewTokenBucketWithClock(50, 1, clock.Now)

	var wg sync.WaitGroup
	var admitted atomic.Int64

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bucket.Consume(1) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 50 {
		t.Errorf("Expected exactly 50 admissions, got %d", admitted.Load())
	}
}

func approxDuration(got, want time.Duration) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Microsecond
}
