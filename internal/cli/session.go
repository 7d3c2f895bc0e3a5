package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tagtime/internal/config"
	"github.com/roach88/tagtime/internal/ledger"
	"github.com/roach88/tagtime/internal/route"
	"github.com/roach88/tagtime/internal/store"
	"github.com/roach88/tagtime/internal/submit"
)

// session is one user's opened state: config, state database and ledger.
type session struct {
	cfg    config.Config
	rules  []route.Rule
	store  *store.Store
	ledger *ledger.Ledger
}

// loadConfig reads the config file and applies the --user override.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.User != "" {
		cfg.User = opts.User
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// openSession loads config and opens the user's store and ledger.
// Failures are reported through out and returned as ExitErrors.
func openSession(opts *RootOptions, out *OutputFormatter) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeConfig, "invalid graph rules", err)
	}

	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeLedger, "failed to open ledger", err)
	}

	slog.Debug("opening database", "path", cfg.StorePath())
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}

	return &session{cfg: cfg, rules: rules, store: st, ledger: led}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// submitQueue builds the submission queue writing to the outbox.
// full forces every graph into full mode for this queue.
func (s *session) submitQueue(full bool) *submit.Queue {
	def, modes := s.cfg.SubmitModes()
	if full {
		def = submit.ModeFull
		modes = nil
	}
	outbox := submit.NewOutboxSubmitter(
		s.cfg.OutboxPath(),
		s.cfg.Submission.URL,
		s.cfg.User,
		s.cfg.AverageGap.Std(),
	)
	return submit.NewQueue(s.ledger, s.rules, outbox, s.store,
		submit.WithDefaultMode(def),
		submit.WithModes(modes),
		submit.WithAuditLog(s.store),
		submit.WithConcurrency(s.cfg.Submission.Concurrency),
		submit.WithLogger(slog.Default().With("user", s.cfg.User)),
	)
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isShutdown reports whether err is the result of a requested stop.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// formatTime renders t as RFC3339 in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
