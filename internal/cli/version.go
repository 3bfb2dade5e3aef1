package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/store"
)

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/roach88/inkwell/internal/cli.Version=...".
var Version = "0.1.0-dev"

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the inkwell version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]any{"version": Version, "schema_version": store.LatestVersion()}
			return rootOpts.formatter(cmd).Render(info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "inkwell %s (schema %d)\n", Version, store.LatestVersion())
				return err
			})
		},
	}
}
