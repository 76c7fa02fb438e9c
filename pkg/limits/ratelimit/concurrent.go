package ratelimit

import (
	"sync/atomic"
)

// ConcurrentLimiter bounds the number of simultaneous holders of a slot.
//
// It is a lock-free counting semaphore. The enforcement layer uses it to cap
// how many callers may wait in the admission queue at once.
type ConcurrentLimiter struct {
	limit   int64
	current atomic.Int64
}

// NewConcurrentLimiter creates a limiter with the given number of slots.
//
//	slots := NewConcurrentLimiter(50)
//	if slots.Acquire() {
//	    defer slots.Release()
//	    // ...
//	}
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	return &ConcurrentLimiter{limit: int64(limit)}
}

// Acquire attempts to take a slot. Returns false if all slots are taken.
// A successful Acquire must be paired with Release.
func (cl *ConcurrentLimiter) Acquire() bool {
	if cl.current.Add(1) > cl.limit {
		cl.current.Add(-1)
		return false
	}
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConcurrentLimiter) Release() {
	cl.current.Add(-1)
}

// Current returns the number of slots in use.
func (cl *ConcurrentLimiter) Current() int64 {
	return cl.current.Load()
}

// Limit returns the configured number of slots.
func (cl *ConcurrentLimiter) Limit() int64 {
	return cl.limit
}

// Remaining returns the number of free slots.
func (cl *ConcurrentLimiter) Remaining() int64 {
	remaining := cl.limit - cl.current.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}
