// Package ratelimit provides process-wide sliding-window admission control for tool calls.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is the width of the sliding window.
const DefaultWindow = 60 * time.Second

// Limiter admits at most maxCalls calls within any trailing window.
// State is in-memory and per process; it is not shared across processes.
type Limiter struct {
	maxCalls   int
	window     time.Duration
	clock      func() time.Time
	mu         sync.Mutex
	timestamps []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow overrides the window width.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock sets the time source; used by tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New returns a limiter admitting maxCalls per window. maxCalls below 1 is raised to 1.
func New(maxCalls int, opts ...Option) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	l := &Limiter{
		maxCalls: maxCalls,
		window:   DefaultWindow,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow prunes expired timestamps and records the call if capacity remains.
// A rejected call is not recorded.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	windowStart := now.Add(-l.window)
	drop := 0
	for drop < len(l.timestamps) && l.timestamps[drop].Before(windowStart) {
		drop++
	}
	if drop > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[drop:]...)
	}
	if len(l.timestamps) >= l.maxCalls {
		return false
	}
	l.timestamps = append(l.timestamps, now)
	return true
}

// MaxCalls returns the window capacity.
func (l *Limiter) MaxCalls() int {
	return l.maxCalls
}
