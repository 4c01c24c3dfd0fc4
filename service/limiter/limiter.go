// Package limiter implements the gateway's admission control: a single
// process-wide sliding window log bounding accepted requests per second.
package limiter

import (
	"sync"
	"time"
)

// SlidingWindow implements the sliding window log rate limiting algorithm
// over one global window.
//
// It stores the timestamp of each admission and counts how many fall within
// the trailing window. Timestamps are appended in monotonically increasing
// order, so eviction is a prefix trim. The evict-check-append sequence runs
// as one critical section, and the log never holds more than limit entries
// after any call returns.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu  sync.Mutex
	log []time.Time
}

// New creates a sliding window limiter admitting at most limit requests per
// window. A limit <= 0 denies everything.
func New(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		log:    make([]time.Time, 0, max(limit, 0)),
	}
}

// NewWithClock is like New but uses the given clock. Tests use this for
// deterministic window expiry.
func NewWithClock(limit int, window time.Duration, now func() time.Time) *SlidingWindow {
	sw := New(limit, window)
	sw.now = now
	return sw
}

// Allow reports whether a request may be admitted now. On admission the
// current instant is recorded; on denial the state is left unchanged.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	windowStart := now.Add(-sw.window)

	// Prefix-trim entries that have fallen out of the window.
	i := 0
	for i < len(sw.log) && !sw.log[i].After(windowStart) {
		i++
	}
	if i > 0 {
		sw.log = append(sw.log[:0], sw.log[i:]...)
	}

	if len(sw.log) < sw.limit {
		sw.log = append(sw.log, now)
		return true
	}
	return false
}

// Limit returns the configured capacity.
func (sw *SlidingWindow) Limit() int {
	return sw.limit
}

// InWindow returns the number of admissions currently inside the window.
func (sw *SlidingWindow) InWindow() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	windowStart := sw.now().Add(-sw.window)
	n := 0
	for _, ts := range sw.log {
		if ts.After(windowStart) {
			n++
		}
	}
	return n
}
