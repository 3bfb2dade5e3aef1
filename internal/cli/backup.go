package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/backup"
)

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore a full JSON snapshot",
	}
	cmd.AddCommand(newBackupExportCommand(rootOpts))
	cmd.AddCommand(newBackupImportCommand(rootOpts))
	return cmd
}

func newBackupExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every book and its contents as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if out == "" || out == "-" {
					if _, err := a.backup.Export(ctx, cmd.OutOrStdout()); err != nil {
						return storeError("export", err)
					}
					return nil
				}

				f, err := os.Create(out)
				if err != nil {
					return WrapExitError(ExitCommandError, "create output file", err)
				}
				doc, err := a.backup.Export(ctx, f)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return storeError("export", err)
				}
				summary := snapshotSummary(doc, out)
				return rootOpts.formatter(cmd).Render(summary, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Exported snapshot %s (%d books) to %s\n", doc.ID, len(doc.Books), out)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newBackupImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the whole database with a snapshot",
		Long: `Replace the whole database with a snapshot written by "backup export".

The snapshot is validated first; nothing changes unless it is valid.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "open snapshot", err)
				}
				defer f.Close()
				r = f
			}

			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				formatter := rootOpts.formatter(cmd)
				doc, err := a.backup.Import(ctx, r)
				var ve *backup.ValidationError
				if errors.As(err, &ve) {
					_ = formatter.Error(ErrCodeInvalidSnapshot, ve.Error(), map[string]any{"field": ve.Field})
					return WrapExitError(ExitFailure, "import rejected", err)
				}
				if err != nil {
					return storeError("import", err)
				}
				return formatter.Render(snapshotSummary(doc, args[0]), func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Imported snapshot %s (%d books)\n", doc.ID, len(doc.Books))
					return err
				})
			})
		},
	}
}

func snapshotSummary(doc backup.Document, path string) map[string]any {
	return map[string]any{
		"id":             doc.ID,
		"file":           path,
		"schema_version": doc.SchemaVersion,
		"exported_at":    doc.ExportedAt,
		"books":          len(doc.Books),
		"chapters":       len(doc.Chapters),
		"characters":     len(doc.Characters),
		"writing_logs":   len(doc.WritingLogs),
	}
}
