package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tagtime/internal/schedule"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Seed  string
	Force bool

	// NewSeed overrides seed generation (for testing).
	NewSeed func() (schedule.Seed, error)
}

// InitResult is the output of the init command.
type InitResult struct {
	User              string `json:"user"`
	Seed              string `json:"seed"`
	AverageGapSeconds int64  `json:"average_gap_seconds"`
	Imported          bool   `json:"imported"`
	Store             string `json:"store"`
	Ledger            string `json:"ledger"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the ping schedule cursor",
		Long: `Create the user's state database and ping schedule cursor.

Without --seed a fresh random seed is generated. Pass the seed printed by
another device to share its ping schedule.

Example:
  tagtime init
  tagtime init --seed 0102...20 --user alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "hex seed to import (64 hex digits)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace an existing seed")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	var (
		seed     schedule.Seed
		imported bool
		err      error
	)
	if opts.Seed != "" {
		seed, err = schedule.ParseSeed(opts.Seed)
		if err != nil {
			return out.Fail(ExitCommandError, CodeUsage, "invalid --seed", err)
		}
		imported = true
	}

	sess, err := openSession(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	existing, found, loadErr := sess.store.LoadCursor(ctx)
	if loadErr != nil && !opts.Force {
		return out.Fail(ExitCommandError, CodeStore, "existing cursor is unreadable; use --force to replace it", loadErr)
	}
	if found && !opts.Force {
		return out.Fail(ExitCommandError, CodeUsage,
			fmt.Sprintf("user %q is already initialized; use --force to replace the seed", sess.cfg.User), nil)
	}

	if !imported {
		gen := opts.NewSeed
		if gen == nil {
			gen = schedule.NewSeed
		}
		seed, err = gen()
		if err != nil {
			return out.Fail(ExitCommandError, CodeStore, "failed to generate seed", err)
		}
	}

	gap := int64(sess.cfg.AverageGap.Std().Seconds())
	cursor := schedule.Cursor{Seed: seed, AverageGapSeconds: gap}
	if found {
		// Keep the last fire time so the new chain never revisits old pings.
		cursor.LastFireTime = existing.LastFireTime
	}
	if err := sess.store.SaveCursor(ctx, cursor); err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to save cursor", err)
	}
	slog.Info("cursor created", "user", sess.cfg.User, "imported", imported, "replaced", found)

	result := InitResult{
		User:              sess.cfg.User,
		Seed:              seed.String(),
		AverageGapSeconds: gap,
		Imported:          imported,
		Store:             sess.cfg.StorePath(),
		Ledger:            sess.cfg.LedgerPath(),
	}
	return out.Emit(result, func(w io.Writer) error {
		fmt.Fprintf(w, "Initialized %s\n", result.User)
		fmt.Fprintf(w, "  store:  %s\n", result.Store)
		fmt.Fprintf(w, "  ledger: %s\n", result.Ledger)
		fmt.Fprintf(w, "  gap:    %ds\n", result.AverageGapSeconds)
		fmt.Fprintf(w, "  seed:   %s\n", result.Seed)
		fmt.Fprintln(w, "Share the seed with 'tagtime init --seed' on other devices to ping in sync.")
		return nil
	})
}
