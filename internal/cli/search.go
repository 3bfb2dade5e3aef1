package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>...",
		Short: "Search every book for names and titles starting with the query",
		Long: `Search books, characters, locations, chapters, plot events, themes and
props whose name or title starts with the query, ignoring case.

Queries shorter than the configured minimum length return nothing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")
			return withApp(ctx, rootOpts, func(a *app) error {
				results := a.search.Search(ctx, query)
				formatter := rootOpts.formatter(cmd)
				formatter.VerboseLog("%d result(s) for %q", len(results), query)
				return formatter.Render(results, func(w io.Writer) error {
					if len(results) == 0 {
						_, err := fmt.Fprintln(w, "No results.")
						return err
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "KIND\tNAME\tPATH\tSNIPPET")
					for _, r := range results {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Kind, r.Name, r.Path, r.Snippet)
					}
					return tw.Flush()
				})
			})
		},
	}
}
