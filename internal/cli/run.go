package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/roach88/tagtime/internal/engine"
	"github.com/roach88/tagtime/internal/ping"
	"github.com/roach88/tagtime/internal/store"
	"github.com/roach88/tagtime/internal/submit"
)

// minSubmitSpacing bounds how often commits can trigger a submission pass.
const minSubmitSpacing = 30 * time.Second

// hintCount is how many recent tags a prompt suggests.
const hintCount = 8

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	MetricsAddr string
	NoSubmit    bool

	// Clock overrides the scheduler clock (for testing).
	// If nil, defaults to engine.SystemClock.
	Clock engine.Clock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start pinging",
		Long: `Start the ping scheduler for one user.

At each ping time a prompt is printed; type tags and press enter to answer,
or enter a blank line to cancel. Unanswered prompts time out. Pings missed
while tagtime was not running are recorded as "afk off".

Committed answers are routed to graphs and written to the outbox every
submission interval.

Example:
  tagtime run
  tagtime run --user alice --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&opts.NoSubmit, "no-submit", false, "do not run the periodic submission pass")

	return cmd
}

func runScheduler(opts *RunOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	schedCfg, err := sess.cfg.Scheduler()
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "invalid scheduler config", err)
	}
	logger := slog.Default().With("user", sess.cfg.User)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	wake := make(chan struct{}, 1)
	prompter := NewTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout(), tagHints(sess.store, logger))

	schedOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithCommitHook(commitHook(sess.store, wake, logger)),
	}
	if opts.Clock != nil {
		schedOpts = append(schedOpts, engine.WithClock(opts.Clock))
	}
	sched, err := engine.New(schedCfg, sess.store, sess.ledger, prompter, schedOpts...)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to create scheduler", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return prompter.Run(gctx) })
	if !opts.NoSubmit && len(sess.rules) > 0 {
		q := sess.submitQueue(false)
		interval := sess.cfg.Submission.Interval.Std()
		g.Go(func() error { return submitLoop(gctx, q, interval, wake, logger) })
	}
	if opts.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, opts.MetricsAddr, logger) })
	}

	out.VerboseLog("ledger: %s", sess.cfg.LedgerPath())
	fmt.Fprintf(out.GetErrWriter(), "tagtime running for %s. Press Ctrl-C to stop.\n", sess.cfg.User)

	if err := g.Wait(); err != nil && !isShutdown(err) {
		switch {
		case engine.IsCursorCorrupt(err):
			return out.Fail(ExitCommandError, CodeStore, "scheduler cursor is corrupt; repair or re-run 'tagtime init --force'", err)
		case engine.IsLedgerWrite(err):
			return out.Fail(ExitFailure, CodeLedger, "ledger append failed; the ping was not recorded", err)
		}
		return out.Fail(ExitFailure, CodeStore, "scheduler stopped", err)
	}

	logger.Info("stopped gracefully")
	return nil
}

// commitHook counts answered tags and wakes the submission loop.
func commitHook(st *store.Store, wake chan<- struct{}, logger *slog.Logger) engine.CommitHook {
	return func(ctx context.Context, e ping.Entry) {
		if e.Outcome == ping.OutcomeAnswered {
			if err := st.IncrementTagCounts(ctx, e.Tags); err != nil {
				logger.Warn("tag counts not updated", "error", err)
			}
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// tagHints suggests the most used tags.
func tagHints(st *store.Store, logger *slog.Logger) HintFunc {
	return func(ctx context.Context) []string {
		counts, err := st.TopTags(ctx, hintCount)
		if err != nil {
			logger.Debug("no tag hints", "error", err)
			return nil
		}
		tags := make([]string, 0, len(counts))
		for _, tc := range counts {
			tags = append(tags, tc.Tag)
		}
		return tags
	}
}

// submitLoop flushes q every interval and after commits, at most once per
// minSubmitSpacing. The first pass runs at startup.
func submitLoop(ctx context.Context, q *submit.Queue, interval time.Duration, wake <-chan struct{}, logger *slog.Logger) error {
	limiter := rate.NewLimiter(rate.Every(minSubmitSpacing), 1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for first := true; ; first = false {
		if !first {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			case <-wake:
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		results, err := q.Flush(ctx)
		if err != nil {
			if isShutdown(err) {
				return nil
			}
			logger.Warn("submission pass failed", "error", err)
			continue
		}
		failed := 0
		for _, r := range results {
			if !r.OK() {
				failed++
			}
		}
		logger.Debug("submission pass", "batches", len(results), "failed", failed)
	}
}

// serveMetrics exposes the Prometheus registry until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("serving metrics", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
