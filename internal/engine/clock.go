package engine

import "time"

// Clock is the scheduler's owned source of time and timers.
//
// The scheduler never sleeps on an opaque job library: every wait goes
// through AfterFunc so cancellation and late-firing detection stay under
// its control. Tests substitute testutil.FakeClock.
//
// Thread-safety: implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed.
	// The returned stop function cancels the call; it reports whether
	// the call was stopped before it ran.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock is the production Clock backed by the time package.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
