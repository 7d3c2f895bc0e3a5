package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/tagtime/internal/ledger"
	"github.com/roach88/tagtime/internal/ping"
	"github.com/roach88/tagtime/internal/schedule"
)

// Retry and wait tuning.
const (
	// DefaultRetryBase is the first backoff after a failed ledger write.
	DefaultRetryBase = time.Second
	// DefaultRetryMax caps the ledger write backoff.
	DefaultRetryMax = time.Minute
	// maxWaitSlice bounds a single timer wait so a host that slept
	// notices the wall clock moved on.
	maxWaitSlice = time.Minute
)

// Config holds the scheduler's read-only inputs.
type Config struct {
	// AverageGap is the mean time between pings, in whole seconds.
	AverageGap time.Duration
	// Timeout is how long a prompt stays open before it times out.
	Timeout time.Duration
	// LateThreshold is how far past its scheduled time a ping may fire
	// before a Retro "afk off" entry is recorded for it.
	LateThreshold time.Duration
	// Anchor is the chain origin for the bootstrap fast-forward.
	Anchor time.Time
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.AverageGap < time.Second || c.AverageGap%time.Second != 0 {
		return fmt.Errorf("average gap %s must be a positive whole number of seconds", c.AverageGap)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout %s must be positive", c.Timeout)
	}
	if c.LateThreshold < 0 {
		return fmt.Errorf("late threshold %s must not be negative", c.LateThreshold)
	}
	if c.Anchor.IsZero() {
		return errors.New("anchor must be set")
	}
	return nil
}

// CursorStore persists the scheduler cursor.
// LoadCursor reports found=false on first run and wraps
// schedule.ErrCorruptCursor when the stored cursor is unusable.
type CursorStore interface {
	LoadCursor(ctx context.Context) (schedule.Cursor, bool, error)
	SaveCursor(ctx context.Context, c schedule.Cursor) error
}

// Ledger durably appends committed entries.
type Ledger interface {
	Append(ctx context.Context, e ping.Entry) error
}

// Prompter is the UI collaborator. Activate must return promptly; the
// prompter later calls Answer or Cancel on the lifecycle.
type Prompter interface {
	Activate(ctx context.Context, l *Lifecycle)
}

// CommitHook runs after every durable commit.
type CommitHook func(ctx context.Context, e ping.Entry)

// State is the scheduler's position within a tick.
type State int32

const (
	StateIdle State = iota
	StateWaitingForTimer
	StateFiring
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForTimer:
		return "waiting"
	case StateFiring:
		return "firing"
	default:
		return "unknown"
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithCommitHook registers a hook called after each durable commit.
func WithCommitHook(h CommitHook) Option {
	return func(s *Scheduler) { s.hooks = append(s.hooks, h) }
}

// WithIDGenerator replaces the UUIDv7 lifecycle id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) { s.ids = g }
}

// WithSeedSource replaces schedule.NewSeed for first-run seed generation.
func WithSeedSource(f func() (schedule.Seed, error)) Option {
	return func(s *Scheduler) { s.newSeed = f }
}

// WithRetryBackoff overrides the ledger write backoff bounds.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(s *Scheduler) {
		s.retryBase = base
		s.retryMax = max
	}
}

// Scheduler walks the ping chain for one user session.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine
//   - State(), Open(): safe from any goroutine
type Scheduler struct {
	cfg      Config
	cursors  CursorStore
	ledger   Ledger
	prompter Prompter

	clock     Clock
	logger    *slog.Logger
	hooks     []CommitHook
	ids       IDGenerator
	newSeed   func() (schedule.Seed, error)
	retryBase time.Duration
	retryMax  time.Duration

	state atomic.Int32
	open  atomic.Pointer[Lifecycle]
}

// New creates a scheduler. The configuration is validated here; the
// cursor is not read until Run.
func New(cfg Config, cursors CursorStore, l Ledger, p Prompter, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	s := &Scheduler{
		cfg:       cfg,
		cursors:   cursors,
		ledger:    l,
		prompter:  p,
		clock:     SystemClock{},
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
		newSeed:   schedule.NewSeed,
		retryBase: DefaultRetryBase,
		retryMax:  DefaultRetryMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current tick state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Open returns the lifecycle activated by the latest tick, or nil.
func (s *Scheduler) Open() *Lifecycle {
	return s.open.Load()
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// Run drives the schedule until ctx is cancelled.
//
// A ping that fires later than the late threshold is first logged as an
// "afk off" Retro entry. After an outage spanning several pings, each
// missed ping gets its Retro entry but only the newest one is also
// activated and prompted; the older ones get the Retro entry only.
//
// Returns nil on cancellation, after any open lifecycle has been canceled
// and its commit awaited. Any other return is a *RuntimeError and fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting")

	cur, err := s.bootstrap(ctx)
	if err != nil {
		return err
	}
	gen, err := cur.Generator()
	if err != nil {
		return newRuntimeError(ErrCodeCursorCorrupt, "cursor generator", err)
	}

	for {
		next := gen.Next(cur.LastFireTime)

		s.setState(StateWaitingForTimer)
		if err := s.waitUntil(ctx, next); err != nil {
			s.logger.Info("scheduler stopping: context cancelled")
			return s.shutdown(ctx)
		}

		s.setState(StateFiring)
		if err := s.resolveOpen(ctx); err != nil {
			return err
		}

		cur.LastFireTime = next
		if err := s.cursors.SaveCursor(context.WithoutCancel(ctx), cur); err != nil {
			return newRuntimeError(ErrCodeCursorWrite, "persist last fire time", err)
		}

		now := s.clock.Now()
		if late := now.Sub(next); late > s.cfg.LateThreshold {
			lateFiringsTotal.Inc()
			s.logger.Info("late firing",
				"scheduled", next,
				"late", late.Round(time.Second),
			)
			retro := ping.NewEntry(next, ping.OutcomeRetro, ping.NewTags(ping.TagAFK, ping.TagOff))
			if err := s.commit(ctx, retro); err != nil {
				return err
			}
			// Only the newest missed ping gets a prompt.
			if !gen.Next(next).After(now) {
				s.setState(StateIdle)
				continue
			}
		}

		s.activate(ctx, next)
		s.setState(StateIdle)
	}
}

// bootstrap loads or creates the cursor and handles the first-run ping.
func (s *Scheduler) bootstrap(ctx context.Context) (schedule.Cursor, error) {
	wctx := context.WithoutCancel(ctx)
	gap := int64(s.cfg.AverageGap / time.Second)

	cur, found, err := s.cursors.LoadCursor(ctx)
	if err != nil {
		return schedule.Cursor{}, newRuntimeError(ErrCodeCursorCorrupt, "load cursor", err)
	}

	if !found {
		seed, err := s.newSeed()
		if err != nil {
			return schedule.Cursor{}, fmt.Errorf("generate seed: %w", err)
		}
		cur = schedule.Cursor{Seed: seed, AverageGapSeconds: gap}
		if err := s.cursors.SaveCursor(wctx, cur); err != nil {
			return schedule.Cursor{}, newRuntimeError(ErrCodeCursorWrite, "persist new seed", err)
		}
		s.logger.Info("generated new seed")
	}

	if cur.AverageGapSeconds != gap {
		s.logger.Warn("average gap changed; continuing chain with configured gap",
			"cursor_gap_seconds", cur.AverageGapSeconds,
			"config_gap_seconds", gap,
		)
		cur.AverageGapSeconds = gap
		if err := s.cursors.SaveCursor(wctx, cur); err != nil {
			return schedule.Cursor{}, newRuntimeError(ErrCodeCursorWrite, "persist average gap", err)
		}
	}

	if !cur.HasFired() {
		gen, err := cur.Generator()
		if err != nil {
			return schedule.Cursor{}, newRuntimeError(ErrCodeCursorCorrupt, "cursor generator", err)
		}
		boot, err := gen.FastForward(s.cfg.Anchor, s.clock.Now())
		if err != nil {
			return schedule.Cursor{}, newRuntimeError(ErrCodeScheduleExhausted, "fast-forward from anchor", err)
		}
		cur.LastFireTime = boot
		if err := s.cursors.SaveCursor(wctx, cur); err != nil {
			return schedule.Cursor{}, newRuntimeError(ErrCodeCursorWrite, "persist bootstrap ping", err)
		}
		pingsTotal.WithLabelValues(ping.OutcomeSuppressed.String()).Inc()
		s.logger.Info("bootstrap ping suppressed", "scheduled", boot)
	}

	return cur, nil
}

// waitUntil blocks until the clock reaches t. Returns ctx.Err() if
// cancelled first.
func (s *Scheduler) waitUntil(ctx context.Context, t time.Time) error {
	for {
		d := t.Sub(s.clock.Now())
		if d <= 0 {
			return nil
		}
		if d > maxWaitSlice {
			d = maxWaitSlice
		}
		if err := s.sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	fired := make(chan struct{})
	stop := s.clock.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		stop()
		return ctx.Err()
	}
}

// resolveOpen cancels the previous tick's lifecycle, if still open, and
// waits for its commit.
func (s *Scheduler) resolveOpen(ctx context.Context) error {
	l := s.open.Swap(nil)
	if l == nil {
		return nil
	}
	if l.Cancel() {
		s.logger.Debug("closing unanswered ping", "id", l.ID(), "scheduled", l.ScheduledTime())
	}
	<-l.Done()
	if _, err := l.Result(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Scheduler) activate(ctx context.Context, t time.Time) {
	l := newLifecycle(s.ids.Generate(), t, s.cfg.Timeout, s.clock, s.commit, s.logger)
	s.open.Store(l)
	l.start(ctx)
	s.logger.Info("ping", "id", l.ID(), "scheduled", l.ScheduledTime())
	s.prompter.Activate(ctx, l)
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	defer s.setState(StateIdle)
	if err := s.resolveOpen(ctx); err != nil {
		s.logger.Error("open ping lost at shutdown", "error", err)
	}
	return nil
}

// commit appends e to the ledger, retrying transient failures with capped
// exponential backoff. Backoff waits stop early only when ctx is cancelled.
func (s *Scheduler) commit(ctx context.Context, e ping.Entry) error {
	wctx := context.WithoutCancel(ctx)
	delay := s.retryBase
	for attempt := 1; ; attempt++ {
		err := s.ledger.Append(wctx, e)
		if err == nil {
			break
		}
		if permanentLedgerError(err) {
			s.logger.Error("ledger rejected entry",
				"scheduled", e.ScheduledTime,
				"outcome", e.Outcome.String(),
				"error", err,
			)
			return newRuntimeError(ErrCodeLedgerWrite, "append rejected", err)
		}

		ledgerWriteRetriesTotal.Inc()
		s.logger.Warn("ledger write failed; retrying",
			"scheduled", e.ScheduledTime,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
		if err := s.sleep(ctx, delay); err != nil {
			return newRuntimeError(ErrCodeLedgerWrite, "append abandoned at shutdown", err)
		}
		delay *= 2
		if delay > s.retryMax {
			delay = s.retryMax
		}
	}

	pingsTotal.WithLabelValues(e.Outcome.String()).Inc()
	s.logger.Info("ping committed",
		"scheduled", e.ScheduledTime,
		"outcome", e.Outcome.String(),
		"tags", e.Tags.String(),
	)
	for _, h := range s.hooks {
		h(wctx, e)
	}
	return nil
}

// permanentLedgerError reports errors that no retry can fix.
func permanentLedgerError(err error) bool {
	return errors.Is(err, ledger.ErrOutOfOrder) ||
		errors.Is(err, ledger.ErrSuppressed) ||
		errors.Is(err, ledger.ErrInvalidTag)
}
