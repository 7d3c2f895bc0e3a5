package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roach88/tagtime/internal/ping"
	"github.com/roach88/tagtime/internal/schedule"
	"github.com/roach88/tagtime/internal/testutil"
)

// testAnchor is the chain origin used by scheduler tests.
var testAnchor = time.Unix(1700000000, 0).UTC()

var errDiskFull = errors.New("disk full")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memCursors is an in-memory CursorStore.
type memCursors struct {
	mu      sync.Mutex
	cur     schedule.Cursor
	found   bool
	loadErr error
	saveErr error
	saves   []schedule.Cursor
}

func (m *memCursors) LoadCursor(ctx context.Context) (schedule.Cursor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur, m.found, m.loadErr
}

func (m *memCursors) SaveCursor(ctx context.Context, c schedule.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cur = c
	m.found = true
	m.saves = append(m.saves, c)
	return nil
}

func (m *memCursors) current() schedule.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *memCursors) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

// memLedger is an in-memory Ledger that can fail on demand.
type memLedger struct {
	mu        sync.Mutex
	entries   []ping.Entry
	failures  int   // transient failures before the next success
	permanent error // returned on every append when set
	attempts  int
	appended  chan ping.Entry
}

func newMemLedger() *memLedger {
	return &memLedger{appended: make(chan ping.Entry, 256)}
}

func (m *memLedger) Append(ctx context.Context, e ping.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.permanent != nil {
		return m.permanent
	}
	if m.failures > 0 {
		m.failures--
		return errDiskFull
	}
	m.entries = append(m.entries, e)
	m.appended <- e
	return nil
}

func (m *memLedger) all() []ping.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ping.Entry(nil), m.entries...)
}

func (m *memLedger) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// next waits for the next appended entry.
func (m *memLedger) next(t *testing.T) ping.Entry {
	t.Helper()
	select {
	case e := <-m.appended:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ledger append")
		return ping.Entry{}
	}
}

// chanPrompter hands activated lifecycles to the test.
type chanPrompter struct {
	ch chan *Lifecycle
}

func newChanPrompter() *chanPrompter {
	return &chanPrompter{ch: make(chan *Lifecycle, 64)}
}

func (p *chanPrompter) Activate(ctx context.Context, l *Lifecycle) {
	p.ch <- l
}

func (p *chanPrompter) next(t *testing.T) *Lifecycle {
	t.Helper()
	select {
	case l := <-p.ch:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ping activation")
		return nil
	}
}

func testConfig() Config {
	return Config{
		AverageGap:    45 * time.Minute,
		Timeout:       time.Minute,
		LateThreshold: time.Minute,
		Anchor:        testAnchor,
	}
}

func testGenerator(t *testing.T) *schedule.Generator {
	t.Helper()
	gen, err := schedule.NewGenerator(testutil.FixedSeed(), 45*time.Minute)
	if err != nil {
		t.Fatalf("NewGenerator() failed: %v", err)
	}
	return gen
}

// firedCursor returns a cursor for the fixed seed that last fired at t.
func firedCursor(t time.Time) *memCursors {
	return &memCursors{
		cur: schedule.Cursor{
			Seed:              testutil.FixedSeed(),
			AverageGapSeconds: 2700,
			LastFireTime:      t,
		},
		found: true,
	}
}

type schedulerHarness struct {
	clock    *testutil.FakeClock
	cursors  *memCursors
	ledger   *memLedger
	prompter *chanPrompter
	sched    *Scheduler
	cancel   context.CancelFunc
	errCh    chan error
}

func newHarness(t *testing.T, start time.Time, cursors *memCursors, opts ...Option) *schedulerHarness {
	t.Helper()
	h := &schedulerHarness{
		clock:    testutil.NewFakeClock(start),
		cursors:  cursors,
		ledger:   newMemLedger(),
		prompter: newChanPrompter(),
	}
	base := []Option{
		WithClock(h.clock),
		WithLogger(discardLogger()),
		WithSeedSource(testutil.FixedSeedSource(testutil.FixedSeed())),
	}
	s, err := New(testConfig(), h.cursors, h.ledger, h.prompter, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	h.sched = s
	return h
}

func (h *schedulerHarness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.errCh = make(chan error, 1)
	go func() { h.errCh <- h.sched.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.errCh:
		case <-time.After(2 * time.Second):
		}
	})
}

// stop cancels Run and returns its result.
func (h *schedulerHarness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.errCh:
		h.errCh <- err // keep cleanup from blocking
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
		return nil
	}
}

// waitForState polls until the scheduler reaches st.
func (h *schedulerHarness) waitForState(t *testing.T, st State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.sched.State() != st {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler state = %s, want %s", h.sched.State(), st)
		}
		time.Sleep(time.Millisecond)
	}
}

// chainWithSlack walks the fixed-seed chain from testAnchor and returns n
// consecutive ping times whose successor is more than slack after the
// last of them, along with the ping time preceding them.
func chainWithSlack(t *testing.T, n int, slack time.Duration) (time.Time, []time.Time) {
	t.Helper()
	gen := testGenerator(t)
	pts := gen.Upcoming(testAnchor, 1000)
	for j := n; j < len(pts)-1; j++ {
		if pts[j+1].Sub(pts[j]) > slack {
			return pts[j-n], pts[j-n+1 : j+1]
		}
	}
	t.Fatalf("no gap longer than %s in the first %d pings", slack, len(pts))
	return time.Time{}, nil
}
