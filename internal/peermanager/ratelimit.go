// Package peermanager implements connection pooling, sliding-window rate
// limiting, reliability scoring, and banning for remote peers (spec §4.2).
package peermanager

import (
	"sync"
	"time"
)

// slidingWindow counts events in a trailing window of width `window`,
// dropping events older than that as they're observed.
type slidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	events []time.Time
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{window: window}
}

// Allow reports whether another event at `now` fits under limit, recording
// it if so.
func (w *slidingWindow) Allow(now time.Time, limit int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if len(w.events) >= limit {
		return false
	}
	w.events = append(w.events, now)
	return true
}

func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = w.events[i:]
	}
}
