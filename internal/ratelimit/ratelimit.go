// Package ratelimit implements fixed-window per-endpoint-class request
// quotas. No example repo in the pack ships a rate limiter (the
// teacher's QueueMetrics is the closest relative: a struct of atomic
// counters reset by a caller-driven window), so this is a small,
// hand-rolled window counter rather than an imported token-bucket
// library — a map-plus-mutex counter per class, reset lazily by Allow
// once its window has elapsed, serves a fixed-window quota with no
// meaningful gap against a
// dependency, and pulling one in for this alone would not exercise it
// anywhere else in the tree.
package ratelimit

import (
	"sync"
	"time"
)

// Class names one of the fixed per-endpoint quota buckets.
type Class string

// window holds one fixed-window counter per source key.
type window struct {
	mu      sync.Mutex
	counts  map[string]int
	resetAt time.Time
}

// Limiter enforces independent fixed-window quotas per Class.
type Limiter struct {
	quotas map[Class]int
	period time.Duration

	mu      sync.Mutex
	windows map[Class]*window
}

// New builds a Limiter. quotas maps each class to its requests-per-period
// allowance; period is normally one minute.
func New(quotas map[Class]int, period time.Duration) *Limiter {
	if period <= 0 {
		period = time.Minute
	}
	return &Limiter{
		quotas:  quotas,
		period:  period,
		windows: make(map[Class]*window),
	}
}

// Allow reports whether the Nth request this window from key in class is
// within quota (I7: success iff N <= quota). On rejection it also
// returns the number of seconds until the window resets.
func (l *Limiter) Allow(class Class, key string) (ok bool, retryAfterSeconds int) {
	quota, limited := l.quotas[class]
	if !limited || quota <= 0 {
		return true, 0
	}

	w := l.windowFor(class)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if now.After(w.resetAt) {
		w.counts = make(map[string]int)
		w.resetAt = now.Add(l.period)
	}

	w.counts[key]++
	if w.counts[key] > quota {
		return false, int(time.Until(w.resetAt).Seconds()) + 1
	}
	return true, 0
}

func (l *Limiter) windowFor(class Class) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[class]
	if !ok {
		w = &window{counts: make(map[string]int), resetAt: time.Now().Add(l.period)}
		l.windows[class] = w
	}
	return w
}
