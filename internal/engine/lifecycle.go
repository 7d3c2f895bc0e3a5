package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tagtime/internal/ping"
)

// commitFunc makes an entry durable. It returns only once the entry is
// written or the failure is permanent.
type commitFunc func(ctx context.Context, e ping.Entry) error

// Lifecycle is one open ping: Open → {Answered, Canceled, TimedOut}.
//
// Answer and Cancel may be called from any goroutine. The first call wins
// and is delivered through the event queue; later calls return false and
// change nothing. The entry is committed exactly once, by the lifecycle's
// own goroutine.
type Lifecycle struct {
	id        string
	scheduled time.Time
	activated time.Time
	timeout   time.Duration
	clock     Clock
	commit    commitFunc
	logger    *slog.Logger

	events   *eventQueue
	resolved atomic.Bool // guard flag: set by the first Answer/Cancel
	done     chan struct{}

	mu     sync.Mutex
	result ping.Entry
	err    error
}

func newLifecycle(id string, scheduled time.Time, timeout time.Duration, clock Clock, commit commitFunc, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		id:        id,
		scheduled: ping.Normalize(scheduled),
		activated: clock.Now(),
		timeout:   timeout,
		clock:     clock,
		commit:    commit,
		logger:    logger,
		events:    newEventQueue(),
		done:      make(chan struct{}),
	}
}

// start launches the lifecycle goroutine and its auto-timeout timer.
func (l *Lifecycle) start(ctx context.Context) {
	stop := l.clock.AfterFunc(l.timeout, func() { l.Cancel() })
	go l.run(ctx, stop)
}

func (l *Lifecycle) run(ctx context.Context, stopTimer func() bool) {
	defer close(l.done)
	defer stopTimer()

	ev := l.next()
	l.events.Close()

	entry := l.resolve(ev)
	l.logger.Debug("ping resolved",
		"id", l.id,
		"scheduled", l.scheduled,
		"event", ev.Kind.String(),
		"outcome", entry.Outcome.String(),
	)

	err := l.commit(ctx, entry)

	l.mu.Lock()
	l.result = entry
	l.err = err
	l.mu.Unlock()
}

// next blocks until the winning event arrives. The auto-timeout
// guarantees one does.
func (l *Lifecycle) next() Event {
	return <-l.events.Events()
}

// resolve maps the winning event to the entry to commit.
// A cancel at or after the timeout window counts as TimedOut.
func (l *Lifecycle) resolve(ev Event) ping.Entry {
	switch ev.Kind {
	case EventAnswer:
		return ping.NewEntry(l.scheduled, ping.OutcomeAnswered, ping.SplitTags(ev.Text))
	default:
		if ev.At.Sub(l.scheduled) >= l.timeout {
			return ping.NewEntry(l.scheduled, ping.OutcomeTimedOut, ping.NewTags(ping.TagTimedOut))
		}
		return ping.NewEntry(l.scheduled, ping.OutcomeCanceled, ping.NewTags(ping.TagCanceled))
	}
}

// Answer records the user's tags. The string is split on whitespace.
// Returns false if the ping was already answered, canceled or timed out.
func (l *Lifecycle) Answer(tags string) bool {
	return l.raise(Event{Kind: EventAnswer, Text: tags})
}

// Cancel dismisses the ping. Returns false if it was already resolved.
func (l *Lifecycle) Cancel() bool {
	return l.raise(Event{Kind: EventCancel})
}

func (l *Lifecycle) raise(ev Event) bool {
	if !l.resolved.CompareAndSwap(false, true) {
		return false
	}
	ev.At = l.clock.Now()
	return l.events.Enqueue(ev)
}

// ID returns the lifecycle's unique identifier.
func (l *Lifecycle) ID() string {
	return l.id
}

// ScheduledTime returns the authoritative ping time.
func (l *Lifecycle) ScheduledTime() time.Time {
	return l.scheduled
}

// ActivatedAt returns when the prompt was opened.
func (l *Lifecycle) ActivatedAt() time.Time {
	return l.activated
}

// Deadline returns when the prompt times out on its own.
func (l *Lifecycle) Deadline() time.Time {
	return l.activated.Add(l.timeout)
}

// Resolved reports whether an Answer or Cancel has been accepted.
func (l *Lifecycle) Resolved() bool {
	return l.resolved.Load()
}

// Done is closed once the lifecycle has committed (or failed to).
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

// Result returns the committed entry. Valid after Done is closed.
// A non-nil error means the entry was not made durable.
func (l *Lifecycle) Result() (ping.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.err
}

// Wait blocks until the lifecycle is done or ctx is cancelled.
func (l *Lifecycle) Wait(ctx context.Context) (ping.Entry, error) {
	select {
	case <-l.done:
		return l.Result()
	case <-ctx.Done():
		return ping.Entry{}, ctx.Err()
	}
}
