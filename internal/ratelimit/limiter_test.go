package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestLimiter_AllowUpToCapacity(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(3, WithClock(clk.Now))
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("call %d rejected, want admitted", i+1)
		}
	}
	if l.Allow() {
		t.Error("4th call admitted, want rejected")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(2, WithClock(clk.Now))
	l.Allow()
	clk.Advance(30 * time.Second)
	l.Allow()
	if l.Allow() {
		t.Fatal("3rd call within window admitted")
	}
	// First timestamp leaves the window; second one is still inside.
	clk.Advance(31 * time.Second)
	if !l.Allow() {
		t.Fatal("call after oldest expired rejected")
	}
	if l.Allow() {
		t.Error("window should be full again")
	}
}

func TestLimiter_RejectedCallsAreNotRecorded(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(1, WithClock(clk.Now))
	l.Allow()
	for i := 0; i < 5; i++ {
		clk.Advance(10 * time.Second)
		l.Allow()
	}
	// Only the admitted call at t=0 is in the window; at t=61s it has expired.
	clk.Advance(11 * time.Second)
	if !l.Allow() {
		t.Error("rejected calls must not extend the window")
	}
}

func TestLimiter_SlidingWindowProperty(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	const maxCalls = 5
	window := 10 * time.Second
	l := New(maxCalls, WithClock(clk.Now), WithWindow(window))
	var admitted []time.Time
	steps := []time.Duration{0, 1, 1, 2, 0, 3, 1, 4, 2, 2, 5, 0, 0, 1, 9, 1, 1}
	for _, s := range steps {
		clk.Advance(s * time.Second)
		if l.Allow() {
			admitted = append(admitted, clk.now)
		}
		count := 0
		for _, ts := range admitted {
			if !ts.Before(clk.now.Add(-window)) {
				count++
			}
		}
		if count > maxCalls {
			t.Fatalf("at %v: %d admits within window, want <= %d", clk.now, count, maxCalls)
		}
	}
}

func TestLimiter_MinimumCapacity(t *testing.T) {
	l := New(0)
	if l.MaxCalls() != 1 {
		t.Errorf("MaxCalls() = %d, want 1", l.MaxCalls())
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(50)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 50 {
		t.Errorf("admitted %d, want 50", admitted)
	}
}
