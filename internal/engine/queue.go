package engine

import (
	"sync"
	"time"
)

// EventKind distinguishes the external events a lifecycle accepts.
type EventKind int

const (
	// EventAnswer carries the user's tag string.
	EventAnswer EventKind = iota + 1
	// EventCancel dismisses the prompt (or reports its timeout).
	EventCancel
)

// String returns the lowercase event name.
func (k EventKind) String() string {
	switch k {
	case EventAnswer:
		return "answer"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is one external input to a PingLifecycle.
type Event struct {
	Kind EventKind
	// Text is the raw tag string for EventAnswer.
	Text string
	// At is the clock time the event was raised.
	At time.Time
}

// eventQueue carries the winning event of one lifecycle to its goroutine.
//
// It holds a single slot: the first accepted event is kept and every later
// offer is refused, so producers (prompt input, the timeout timer) never
// block and never overwrite the winner.
type eventQueue struct {
	mu     sync.Mutex
	closed bool
	slot   chan Event
}

func newEventQueue() *eventQueue {
	return &eventQueue{slot: make(chan Event, 1)}
}

// Enqueue offers e. Returns false if an event is already held or the
// queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.slot <- e:
		return true
	default:
		return false
	}
}

// Events delivers the accepted event.
func (q *eventQueue) Events() <-chan Event {
	return q.slot
}

// Len reports whether an event is waiting (0 or 1).
func (q *eventQueue) Len() int {
	return len(q.slot)
}

// Close refuses further events. An event already held stays readable.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
