package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tagtime/internal/route"
	"github.com/roach88/tagtime/internal/store"
	"github.com/roach88/tagtime/internal/submit"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Full    bool
	DryRun  bool
	History bool
	Reset   bool
	Graph   string
	Limit   int
}

// PendingBatch describes what a flush would send to one graph.
type PendingBatch struct {
	Graph string `json:"graph"`
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// SubmitResult is the output of the submit command.
type SubmitResult struct {
	User    string                   `json:"user"`
	Results []submit.BatchResult     `json:"results,omitempty"`
	Pending []PendingBatch           `json:"pending,omitempty"`
	History []store.SubmissionRecord `json:"history,omitempty"`
	Reset   []string                 `json:"reset,omitempty"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Flush routed entries to the outbox",
		Long: `Run one submission pass: route ledger entries to graphs and write
each graph's batch to the outbox.

Incremental graphs send only entries past their watermark; full graphs
resend everything. A failed graph keeps its watermark and is retried on
the next pass.

Example:
  tagtime submit
  tagtime submit --full
  tagtime submit --dry-run
  tagtime submit --history --graph work`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Full, "full", false, "resend every routed entry for all graphs")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show pending batches without sending")
	cmd.Flags().BoolVar(&opts.History, "history", false, "list past submission attempts")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "clear watermarks (all graphs, or --graph) so the next pass resends")
	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "limit --history, --dry-run and --reset to one graph")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum history rows")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	sess, err := openSession(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	graphs := route.Graphs(sess.rules)
	if opts.Graph != "" {
		if !contains(graphs, opts.Graph) {
			return out.Fail(ExitCommandError, CodeUsage, fmt.Sprintf("no rule routes to graph %q", opts.Graph), nil)
		}
		graphs = []string{opts.Graph}
	}

	result := SubmitResult{User: sess.cfg.User}
	switch {
	case opts.History:
		history, err := sess.store.ListSubmissions(ctx, opts.Graph, opts.Limit)
		if err != nil {
			return out.Fail(ExitCommandError, CodeStore, "failed to list submissions", err)
		}
		result.History = history
		return out.Emit(result, func(w io.Writer) error {
			return writeHistory(w, history)
		})

	case opts.Reset:
		for _, g := range graphs {
			if err := sess.store.ResetWatermark(ctx, g); err != nil {
				return out.Fail(ExitCommandError, CodeStore, "failed to reset watermark", err)
			}
			slog.Info("watermark reset", "graph", g)
		}
		result.Reset = graphs
		return out.Emit(result, func(w io.Writer) error {
			for _, g := range graphs {
				fmt.Fprintf(w, "reset %s\n", g)
			}
			return nil
		})

	case opts.DryRun:
		q := sess.submitQueue(opts.Full)
		result.Pending = []PendingBatch{}
		for _, g := range graphs {
			b, err := q.Pending(ctx, g)
			if err != nil {
				return out.Fail(ExitCommandError, CodeLedger, "failed to compute pending batch", err)
			}
			result.Pending = append(result.Pending, PendingBatch{Graph: g, Mode: b.Mode.String(), Count: len(b.Records)})
		}
		return out.Emit(result, func(w io.Writer) error {
			for _, p := range result.Pending {
				fmt.Fprintf(w, "%-20s %-11s %d pending\n", p.Graph, p.Mode, p.Count)
			}
			return nil
		})
	}

	results, err := sess.submitQueue(opts.Full).Flush(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, CodeLedger, "submission pass failed", err)
	}
	result.Results = results

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}

	if err := out.Emit(result, func(w io.Writer) error {
		if len(results) == 0 {
			fmt.Fprintln(w, "Nothing to submit.")
			return nil
		}
		for _, r := range results {
			status := "ok"
			if !r.OK() {
				status = "FAILED: " + r.Error
			}
			fmt.Fprintf(w, "%-20s %-11s %4d entries  %s\n", r.Graph, r.Mode, r.Count, status)
		}
		return nil
	}); err != nil {
		return err
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d batches failed", failed, len(results)))
	}
	return nil
}

func writeHistory(w io.Writer, history []store.SubmissionRecord) error {
	if len(history) == 0 {
		fmt.Fprintln(w, "No submissions yet.")
		return nil
	}
	for _, h := range history {
		status := "ok"
		if !h.OK {
			status = "FAILED: " + h.Error
		}
		fmt.Fprintf(w, "%s  %-20s %-11s %4d entries  %s\n",
			formatTime(h.AttemptedAt), h.Graph, h.Mode, h.EntryCount, status)
	}
	return nil
}
