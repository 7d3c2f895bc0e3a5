package testutil

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced clock for timer-driven tests.
//
// It satisfies engine.Clock. Callbacks registered with AfterFunc run, in
// deadline order, on the goroutine that calls Advance or Set once their
// deadline is reached.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	waiters []*fakeWaiter
	changed chan struct{} // closed and replaced whenever waiters change
}

type fakeWaiter struct {
	id       int
	deadline time.Time
	f        func()
}

// NewFakeClock creates a fake clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{
		now:     start,
		changed: make(chan struct{}),
	}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock has advanced by d.
// A non-positive d runs f immediately in its own goroutine.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) func() bool {
	if d <= 0 {
		go f()
		return func() bool { return false }
	}

	c.mu.Lock()
	c.nextID++
	w := &fakeWaiter{id: c.nextID, deadline: c.now.Add(d), f: f}
	c.waiters = append(c.waiters, w)
	c.notifyLocked()
	c.mu.Unlock()

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, other := range c.waiters {
			if other == w {
				c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
				c.notifyLocked()
				return true
			}
		}
		return false
	}
}

// Advance moves the clock forward by d and runs every callback now due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set moves the clock to t and runs every callback now due.
// The clock never moves backwards; an earlier t is ignored.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	if t.After(c.now) {
		c.now = t
	}
	due := c.dueLocked()
	c.mu.Unlock()

	for _, w := range due {
		w.f()
	}
}

func (c *FakeClock) dueLocked() []*fakeWaiter {
	var due, pending []*fakeWaiter
	for _, w := range c.waiters {
		if !w.deadline.After(c.now) {
			due = append(due, w)
		} else {
			pending = append(pending, w)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	if len(due) > 0 {
		c.waiters = pending
		c.notifyLocked()
	}
	return due
}

// Waiters returns the number of registered callbacks not yet run or stopped.
func (c *FakeClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// BlockUntil waits until at least n callbacks are registered, or the
// timeout (real time) passes. Returns false on timeout.
func (c *FakeClock) BlockUntil(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		if len(c.waiters) >= n {
			c.mu.Unlock()
			return true
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-deadline:
			return false
		}
	}
}

func (c *FakeClock) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
