package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The bucket holds up to capacity tokens and refills continuously at
// refillRate tokens per second. A session can burst up to the capacity and
// then settles to the steady-state refill rate.
//
// # Algorithm
//
//  1. Add elapsed * refillRate tokens, capped at capacity
//  2. If at least n tokens are available, deduct n and allow
//  3. Otherwise reject, keeping only the refill update
//
// # Thread Safety
//
// TokenBucket is thread-safe using sync.Mutex for all operations, so it can
// be used on its own outside the Manager.
type TokenBucket struct {
	capacity   float64          // Maximum tokens in bucket
	tokens     float64          // Current available tokens
	refillRate float64          // Tokens added per second
	lastRefill time.Time        // Last time tokens were refilled
	now        func() time.Time // Clock, replaceable in tests
	mu         sync.Mutex
}

// NewTokenBucket creates a full token bucket driven by the wall clock.
//
// Example:
//
//	// 100 requests per minute with a burst allowance of 20
//	bucket := NewTokenBucket(120, 100.0/60.0)
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return NewTokenBucketWithClock(capacity, refillRate, time.Now)
}

// NewTokenBucketWithClock creates a full token bucket that reads time from clock.
func NewTokenBucketWithClock(capacity, refillRate float64, clock func() time.Time) *TokenBucket {
	if clock == nil {
		clock = time.Now
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity, // Start with full bucket
		refillRate: refillRate,
		lastRefill: clock(),
		now:        clock,
	}
}

// Consume attempts to take n tokens from the bucket.
// Returns true if tokens were available and consumed, false otherwise.
// A non-positive n is rejected and leaves the bucket unchanged.
func (tb *TokenBucket) Consume(n int) bool {
	if n <= 0 {
		return false
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	need := float64(n)
	if tb.tokens >= need {
		tb.tokens -= need
		return true
	}

	return false
}

// WaitTime returns the minimum time until n tokens would be available.
// Returns 0 if they are available now. The value is advisory only; the
// bucket never blocks. A non-positive n always returns 0.
func (tb *TokenBucket) WaitTime(n int) time.Duration {
	if n <= 0 {
		return 0
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	need := float64(n)
	if tb.tokens >= need || tb.refillRate <= 0 {
		return 0
	}

	seconds := (need - tb.tokens) / tb.refillRate
	return time.Duration(seconds * float64(time.Second))
}

// Tokens returns the number of tokens currently available after refill.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// Capacity returns the maximum bucket capacity.
func (tb *TokenBucket) Capacity() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.capacity
}

// RefillRate returns the refill rate in tokens per second.
func (tb *TokenBucket) RefillRate() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.refillRate
}

// Reset refills the bucket to full capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// refillLocked adds tokens based on elapsed time since last refill.
// Caller must hold lock.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
