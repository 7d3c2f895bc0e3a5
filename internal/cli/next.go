package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tagtime/internal/schedule"
)

// NextOptions holds flags for the next command.
type NextOptions struct {
	*RootOptions
	Count int

	// Now overrides the wall clock (for testing).
	Now func() time.Time
}

// UpcomingPing is one line of next output.
type UpcomingPing struct {
	Time time.Time     `json:"time"`
	In   time.Duration `json:"in_ns"`
}

// NextResult is the output of the next command.
type NextResult struct {
	User  string         `json:"user"`
	Now   time.Time      `json:"now"`
	Pings []UpcomingPing `json:"pings"`
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show upcoming ping times",
		Long: `Show the next ping times from the user's schedule.

The times are computed from the stored seed and last fire time, so they
match what 'tagtime run' will do on every device sharing the seed.

Example:
  tagtime next
  tagtime next -n 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 5, "number of ping times to show")

	return cmd
}

func runNext(opts *NextOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	if opts.Count < 1 {
		return out.Fail(ExitCommandError, CodeUsage, fmt.Sprintf("--count must be at least 1, got %d", opts.Count), nil)
	}

	sess, err := openSession(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := commandContext(cmd)
	cursor, found, err := sess.store.LoadCursor(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to load cursor", err)
	}
	if !found {
		return out.Fail(ExitCommandError, CodeNotInitialized,
			fmt.Sprintf("user %q has no schedule yet; run 'tagtime init'", sess.cfg.User), nil)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	at := now().UTC().Truncate(time.Second)

	start := cursor.LastFireTime
	if !cursor.HasFired() {
		if start, err = sess.cfg.AnchorTime(); err != nil {
			return out.Fail(ExitCommandError, CodeConfig, "invalid anchor", err)
		}
	}

	gen, err := cursor.Generator()
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "cursor cannot drive a schedule", err)
	}
	last, err := gen.FastForward(start, at)
	if errors.Is(err, schedule.ErrScheduleExhausted) {
		return out.Fail(ExitFailure, CodeStore, "schedule is too far behind to fast-forward", err)
	}
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to compute schedule", err)
	}

	result := NextResult{User: sess.cfg.User, Now: at, Pings: []UpcomingPing{}}
	for _, t := range gen.Upcoming(last, opts.Count) {
		result.Pings = append(result.Pings, UpcomingPing{Time: t, In: t.Sub(at)})
	}

	return out.Emit(result, func(w io.Writer) error {
		for _, p := range result.Pings {
			fmt.Fprintf(w, "%s  in %s\n", formatTime(p.Time), p.In)
		}
		return nil
	})
}
