package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tagtime/internal/ledger"
	"github.com/roach88/tagtime/internal/ping"
	"github.com/roach88/tagtime/internal/route"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Graph   string
	Outcome string
	Tail    int
}

// LogEntry is one ledger entry with the graphs it routes to.
type LogEntry struct {
	ping.Record
	Graphs []string `json:"graphs"`
}

// LogResult is the output of the log command.
type LogResult struct {
	User    string     `json:"user"`
	Graph   string     `json:"graph,omitempty"`
	Entries []LogEntry `json:"entries"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print ledger entries",
		Long: `Print the user's ledger in ledger line format.

With --graph only entries that the configured rules route to that graph
are shown.

Example:
  tagtime log --tail 10
  tagtime log --graph work --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "only entries routed to this graph")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only entries with this outcome (answered|canceled|timed_out|retro)")
	cmd.Flags().IntVar(&opts.Tail, "tail", 0, "show only the last N matching entries (0 = all)")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	var (
		outcome    ping.Outcome
		hasOutcome bool
	)
	if opts.Outcome != "" {
		o, err := ping.ParseOutcome(opts.Outcome)
		if err != nil {
			return out.Fail(ExitCommandError, CodeUsage, "invalid --outcome", err)
		}
		outcome, hasOutcome = o, true
	}

	sess, err := openSession(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.Graph != "" && !contains(route.Graphs(sess.rules), opts.Graph) {
		return out.Fail(ExitCommandError, CodeUsage,
			fmt.Sprintf("no rule routes to graph %q", opts.Graph), nil)
	}

	records, err := sess.ledger.Entries(commandContext(cmd))
	if err != nil {
		return out.Fail(ExitCommandError, CodeLedger, "failed to read ledger", err)
	}

	result := LogResult{User: sess.cfg.User, Graph: opts.Graph, Entries: []LogEntry{}}
	for _, r := range records {
		if hasOutcome && r.Entry.Outcome != outcome {
			continue
		}
		if opts.Graph != "" && !route.RoutesTo(r.Entry, opts.Graph, sess.rules) {
			continue
		}
		result.Entries = append(result.Entries, LogEntry{
			Record: r,
			Graphs: route.Route(r.Entry, sess.rules),
		})
	}
	if opts.Tail > 0 && len(result.Entries) > opts.Tail {
		result.Entries = result.Entries[len(result.Entries)-opts.Tail:]
	}

	out.VerboseLog("%d of %d entries shown", len(result.Entries), len(records))
	return out.Emit(result, func(w io.Writer) error {
		for _, e := range result.Entries {
			fmt.Fprintln(w, ledger.FormatLine(e.Entry))
		}
		return nil
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
