// Package ratelimit gates message admission at the IPC boundary with a
// fixed-window token bucket: up to capacity admissions per window, then
// refusal until the window rolls over and the bucket refills to full.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the refill interval. Tokens reset to full capacity once the
// elapsed time since the last refill reaches this duration.
const Window = 60 * time.Second

// DefaultCapacity is used when the configured capacity is not positive.
const DefaultCapacity = 60

// Limiter is a fixed-window token bucket shared by all IPC callers.
// The zero value is not usable; construct with New.
type Limiter struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	lastRefill time.Time
}

// New creates a Limiter with the given per-window capacity.
// Non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token and reports whether the caller is admitted.
// When the window has elapsed the bucket refills to full before the
// token is taken.
func (l *Limiter) Allow() bool {
	return l.allowAt(time.Now())
}

// allowAt is the clock-injected core of Allow, used by tests.
func (l *Limiter) allowAt(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastRefill) >= Window {
		l.tokens = l.capacity
		l.lastRefill = now
	}
	if l.tokens == 0 {
		return false
	}
	l.tokens--
	return true
}

// Remaining returns the number of tokens left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

// Capacity returns the configured per-window capacity.
func (l *Limiter) Capacity() int {
	return l.capacity
}
