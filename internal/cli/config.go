package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(config.ResolveDir(rootOpts.ConfigDir), force)
			if err != nil {
				return WrapExitError(ExitCommandError, "config init", err)
			}
			return rootOpts.formatter(cmd).Render(map[string]string{"file": path}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Wrote %s\n", path)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			return rootOpts.formatter(cmd).Render(cfg, func(w io.Writer) error {
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				source := cfg.File
				if source == "" {
					source = "defaults (no config.yaml in " + cfg.Dir + ")"
				}
				if _, err := fmt.Fprintf(w, "# source: %s\n", source); err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			})
		},
	}
}
