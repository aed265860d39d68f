// Package ratelimit counts requests per key in fixed windows.
//
// State is process-local and is lost on restart. Call sites depend on the
// Limiter interface so a shared store can replace Window later.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a limiter call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return (wait + time.Second - 1) / time.Second * time.Second
}

type Limiter interface {
	// Allow records one request for key and reports whether it fits the window.
	Allow(key string) Decision
	// Undo returns one slot taken by Allow in the current window.
	Undo(key string)
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Window is an in-memory fixed-window Limiter.
type Window struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lastGC  time.Time
}

type Option func(*Window)

func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

func NewWindow(window time.Duration, max int, opts ...Option) *Window {
	w := &Window{window: window, max: max, now: time.Now, buckets: map[string]*bucket{}}
	for _, opt := range opts {
		opt(w)
	}
	w.lastGC = w.now()
	return w
}

func (w *Window) Allow(key string) Decision {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.current(key)
	if b.count >= w.max {
		return w.decision(b, false)
	}
	b.count++
	return w.decision(b, true)
}

func (w *Window) Undo(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.buckets[key]
	if !ok || !w.now().Before(b.resetAt) || b.count == 0 {
		return
	}
	b.count--
}

// Len is the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buckets)
}

// current returns the live bucket for key. Callers hold w.mu.
func (w *Window) current(key string) *bucket {
	now := w.now()
	if now.Sub(w.lastGC) >= w.window {
		for k, b := range w.buckets {
			if !now.Before(b.resetAt) {
				delete(w.buckets, k)
			}
		}
		w.lastGC = now
	}
	b, ok := w.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(w.window)}
		w.buckets[key] = b
	}
	return b
}

func (w *Window) decision(b *bucket, allowed bool) Decision {
	remaining := w.max - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: allowed, Limit: w.max, Remaining: remaining, ResetAt: b.resetAt}
}

// EchoStore adapts a Limiter to echo's middleware.RateLimiterStore.
type EchoStore struct {
	Limiter Limiter
}

func (s EchoStore) Allow(identifier string) (bool, error) {
	return s.Limiter.Allow(identifier).Allowed, nil
}
