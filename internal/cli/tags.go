package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tagtime/internal/store"
)

// TagsOptions holds flags for the tags command.
type TagsOptions struct {
	*RootOptions
	Limit int
}

// TagsResult is the output of the tags command.
type TagsResult struct {
	User string           `json:"user"`
	Tags []store.TagCount `json:"tags"`
}

// NewTagsCommand creates the tags command.
func NewTagsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TagsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the most used tags",
		Long: `List the tags used in answered pings, most frequent first.

Counts are kept by 'tagtime run' as answers are committed. The same list
is offered as hints when a ping prompt opens.

Example:
  tagtime tags --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTags(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of tags")

	return cmd
}

func runTags(opts *TagsOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	counts, err := sess.store.TopTags(commandContext(cmd), opts.Limit)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to read tag counts", err)
	}

	result := TagsResult{User: sess.cfg.User, Tags: counts}
	return out.Emit(result, func(w io.Writer) error {
		if len(counts) == 0 {
			fmt.Fprintln(w, "No tags yet.")
			return nil
		}
		for _, tc := range counts {
			fmt.Fprintf(w, "%6d  %s\n", tc.Count, tc.Tag)
		}
		return nil
	})
}
