// Package ratelimit provides the limiting primitives used by the admission
// controller.
//
// # Overview
//
//   - TokenBucket: smooth, burst-capable counter refilled at a constant rate
//   - SlidingWindow: exact count of requests in a trailing window
//   - ConcurrentLimiter: semaphore bounding simultaneous holders
//   - RateLimit: validated configuration record for one dimension
//
// # Token Bucket
//
//	limit := ratelimit.MustRateLimit(100, 60, 20)
//	bucket := ratelimit.NewTokenBucket(limit.Capacity(), limit.RefillRate())
//	if !bucket.Consume(1) {
//	    wait := bucket.WaitTime(1)
//	    // report wait to the caller
//	}
//
// # Sliding Window
//
//	window := ratelimit.NewSlidingWindow(time.Minute)
//	if window.Count() >= 5 {
//	    // limit reached
//	}
//	window.Add()
//
// # Time
//
// Every primitive accepts an injectable clock so tests can move time without
// sleeping.
//
// # Thread Safety
//
// All primitives are safe for concurrent use on their own. The Manager in
// package limits adds a coordinator lock on top for multi-dimension checks.
package ratelimit
