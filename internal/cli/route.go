package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tagtime/internal/ping"
	"github.com/roach88/tagtime/internal/route"
)

// RouteResult is the output of the route command.
type RouteResult struct {
	Tags   []string `json:"tags"`
	Graphs []string `json:"graphs"`
	// Matched lists the rules that matched, in declaration order.
	Matched []string `json:"matched"`
	// Rules lists every configured rule when no tags were given.
	Rules []string `json:"rules,omitempty"`
}

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route [tag...]",
		Short: "Show which graphs an answer would go to",
		Long: `Evaluate the configured graph rules against a set of tags.

With no tags the configured rules are listed. Tags are matched
case-insensitively; an answer that matches no rule goes nowhere, which is
not an error.

Example:
  tagtime route code meeting
  tagtime route --format json sleep`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runRoute(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	rules, err := cfg.Rules()
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "invalid graph rules", err)
	}

	if len(args) == 0 {
		result := RouteResult{Tags: []string{}, Graphs: []string{}, Matched: []string{}, Rules: ruleStrings(rules)}
		return out.Emit(result, func(w io.Writer) error {
			if len(rules) == 0 {
				fmt.Fprintln(w, "No graph rules configured.")
				return nil
			}
			for _, r := range result.Rules {
				fmt.Fprintln(w, r)
			}
			return nil
		})
	}

	tags := ping.SplitTags(strings.Join(args, " "))
	entry := ping.Entry{Tags: tags, Outcome: ping.OutcomeAnswered}

	result := RouteResult{
		Tags:    tags,
		Graphs:  route.Route(entry, rules),
		Matched: []string{},
	}
	for _, r := range rules {
		if r.Matches(tags) {
			result.Matched = append(result.Matched, r.String())
		}
	}

	return out.Emit(result, func(w io.Writer) error {
		if len(result.Graphs) == 0 {
			fmt.Fprintf(w, "%s -> (no graphs)\n", tags)
			return nil
		}
		fmt.Fprintf(w, "%s -> %s\n", tags, strings.Join(result.Graphs, ", "))
		if out.Verbose {
			for _, m := range result.Matched {
				fmt.Fprintf(w, "  matched %s\n", m)
			}
		}
		return nil
	})
}

func ruleStrings(rules []route.Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.String())
	}
	return out
}
