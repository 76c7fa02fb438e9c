package ratelimit

import (
	"slices"
	"sync"
	"time"
)

// SlidingWindow counts requests observed within a trailing time window.
//
// Unlike TokenBucket there is no burst smoothing: the window stores the exact
// timestamp of every request and answers "how many requests in the last
// window" precisely. This protects shared or expensive tools from exactly
// bounded abuse rather than average-rate abuse.
//
// Timestamps are kept in non-decreasing order, so pruning is a prefix trim.
// After any prune, every stored timestamp t satisfies now - t < window.
//
// # Thread Safety
//
// SlidingWindow is thread-safe using sync.Mutex.
type SlidingWindow struct {
	window     time.Duration
	timestamps []time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewSlidingWindow creates a sliding window counter driven by the wall clock.
//
// Example:
//
//	// 5 requests per minute
//	sw := NewSlidingWindow(time.Minute)
//	if sw.Count() < 5 {
//	    sw.Add()
//	}
func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return NewSlidingWindowWithClock(window, time.Now)
}

// NewSlidingWindowWithClock creates a sliding window that reads time from clock.
func NewSlidingWindowWithClock(window time.Duration, clock func() time.Time) *SlidingWindow {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindow{
		window: window,
		now:    clock,
	}
}

// Add records a request at the current time.
func (sw *SlidingWindow) Add() {
	sw.AddAt(sw.now())
}

// AddAt records a request at timestamp t and prunes expired entries
// relative to t. A timestamp earlier than the newest entry is inserted in
// order.
func (sw *SlidingWindow) AddAt(t time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	n := len(sw.timestamps)
	if n == 0 || !t.Before(sw.timestamps[n-1]) {
		sw.timestamps = append(sw.timestamps, t)
	} else {
		i, _ := slices.BinarySearchFunc(sw.timestamps, t, func(a, b time.Time) int {
			return a.Compare(b)
		})
		sw.timestamps = slices.Insert(sw.timestamps, i, t)
	}

	sw.pruneLocked(t)
}

// Count prunes expired entries and returns the number of requests
// remaining in the window.
func (sw *SlidingWindow) Count() int {
	return sw.CountAt(sw.now())
}

// CountAt prunes relative to t and returns the retained request count.
func (sw *SlidingWindow) CountAt(t time.Time) int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(t)
	return len(sw.timestamps)
}

// Oldest returns the oldest retained timestamp. The boolean is false when
// the window is empty.
func (sw *SlidingWindow) Oldest() (time.Time, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.now())
	if len(sw.timestamps) == 0 {
		return time.Time{}, false
	}
	return sw.timestamps[0], true
}

// Len returns the number of stored timestamps without pruning.
func (sw *SlidingWindow) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.timestamps)
}

// Window returns the window duration.
func (sw *SlidingWindow) Window() time.Duration {
	return sw.window
}

// Reset clears all recorded requests.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.timestamps = nil
}

// pruneLocked drops every timestamp with now - t >= window.
// Caller must hold lock.
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)

	i := 0
	for i < len(sw.timestamps) && !sw.timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}

	n := copy(sw.timestamps, sw.timestamps[i:])
	clear(sw.timestamps[n:])
	sw.timestamps = sw.timestamps[:n]
}
