package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultPoints   = 5
	DefaultDuration = 5 * time.Second
)

type hit struct {
	at     time.Time
	weight int
}

// Window is a sliding-window counter owned by a single connection session.
// An action is allowed when the weights recorded inside the trailing window
// plus its own weight stay within the configured points.
type Window struct {
	mu       sync.Mutex
	hits     []hit
	points   int
	duration time.Duration
}

// New returns a full window. Non-positive inputs fall back to the defaults.
func New(points int, duration time.Duration) *Window {
	if points <= 0 {
		points = DefaultPoints
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Window{
		hits:     make([]hit, 0, points),
		points:   points,
		duration: duration,
	}
}

// Allow records weight at now and reports true, or records nothing and
// reports false when the action would exceed the window's points.
func (w *Window) Allow(now time.Time, weight int) bool {
	if weight <= 0 {
		weight = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	used := w.evict(now)
	if used+weight > w.points {
		return false
	}
	w.hits = append(w.hits, hit{at: now, weight: weight})
	return true
}

// Remaining returns how many weight units could be consumed at now.
func (w *Window) Remaining(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.points - w.evict(now)
}

func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hits = w.hits[:0]
}

// evict drops hits older than the window and returns the weight still inside it.
// Caller must hold w.mu.
func (w *Window) evict(now time.Time) int {
	cut := now.Add(-w.duration)
	kept := w.hits[:0]
	used := 0
	for _, h := range w.hits {
		if h.at.After(cut) {
			kept = append(kept, h)
			used += h.weight
		}
	}
	w.hits = kept
	return used
}
