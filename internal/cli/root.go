// Package cli implements the inkwell command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/clock"
	"github.com/roach88/inkwell/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "text" | "json" | "yaml"
	DB        string // overrides the configured database path
	ConfigDir string

	// Config is resolved in PersistentPreRunE.
	Config config.Config

	clock clock.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the inkwell CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{clock: clock.System{}})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inkwell",
		Short: "inkwell - a local-first workbench for novelists",
		Long: `inkwell keeps books, their characters, places, plot events, chapters,
themes and props in one local database, and tracks daily writing progress.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load(config.ResolveDir(opts.ConfigDir))
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if opts.DB != "" {
				cfg.Database = opts.DB
			}
			opts.Config = cfg

			level, _ := cfg.Level()
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database path (default from config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "config directory (default $"+config.EnvConfigDir+" or "+config.DefaultDir+")")

	// Add subcommands
	cmd.AddCommand(NewBookCommand(opts))
	cmd.AddCommand(NewChapterCommand(opts))
	cmd.AddCommand(NewCharacterCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting structured output
		Verbose:   o.Verbose,
	}
}
