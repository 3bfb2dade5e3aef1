package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/library"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
)

// BookRow is one line of `book list`.
type BookRow struct {
	model.Book
	Counts library.Counts `json:"counts"`
}

// NewBookCommand creates the book command group.
func NewBookCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage books in the library",
	}
	cmd.AddCommand(newBookListCommand(rootOpts))
	cmd.AddCommand(newBookAddCommand(rootOpts))
	cmd.AddCommand(newBookTargetCommand(rootOpts))
	cmd.AddCommand(newBookArchiveCommand(rootOpts, true))
	cmd.AddCommand(newBookArchiveCommand(rootOpts, false))
	cmd.AddCommand(newBookPinCommand(rootOpts))
	cmd.AddCommand(newBookDeleteCommand(rootOpts))
	return cmd
}

func newBookListCommand(rootOpts *RootOptions) *cobra.Command {
	var sortKey, filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, pinned first",
		Long: `List books in the library.

--sort and --filter are remembered for later listings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if cmd.Flags().Changed("sort") {
					k, err := library.ParseSortKey(sortKey)
					if err != nil {
						return WrapExitError(ExitCommandError, "invalid --sort", err)
					}
					if err := a.library.SetSort(ctx, k); err != nil {
						return storeError("save sort", err)
					}
				}
				if cmd.Flags().Changed("filter") {
					f, err := library.ParseFilter(filter)
					if err != nil {
						return WrapExitError(ExitCommandError, "invalid --filter", err)
					}
					if err := a.library.SetFilter(ctx, f); err != nil {
						return storeError("save filter", err)
					}
				}

				books := a.library.Books()
				rows := make([]BookRow, len(books))
				for i, b := range books {
					rows[i] = BookRow{Book: b, Counts: a.library.Counts(b.ID)}
				}
				return rootOpts.formatter(cmd).Render(rows, func(w io.Writer) error {
					return renderBooks(w, rows)
				})
			})
		},
	}

	cmd.Flags().StringVar(&sortKey, "sort", string(library.SortUpdated), "sort order (updated|created|title|words)")
	cmd.Flags().StringVar(&filter, "filter", string(library.FilterActive), "which books to show (active|archived|all)")
	return cmd
}

func renderBooks(w io.Writer, rows []BookRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No books.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tWORDS\tCHAPTERS\tCHARACTERS\tFLAGS")
	for _, r := range rows {
		flags := ""
		if r.PinOrder > 0 {
			flags += "pinned "
		}
		if r.Archived {
			flags += "archived"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.Title, r.WordCount, r.Counts[model.KindChapter], r.Counts[model.KindCharacter], flags)
	}
	return tw.Flush()
}

func newBookAddCommand(rootOpts *RootOptions) *cobra.Command {
	var target int

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				id, err := a.library.CreateBook(ctx, args[0], target)
				if err != nil {
					return storeError("create book", err)
				}
				b, _ := a.library.Book(id)
				return rootOpts.formatter(cmd).Render(b, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Created book %d: %s\n", b.ID, b.Title)
					return err
				})
			})
		},
	}

	cmd.Flags().IntVar(&target, "target", 0, "daily word target")
	return cmd
}

func newBookTargetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "target <book-id> <words>",
		Short: "Set a book's daily word target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			words, err := strconv.Atoi(args[1])
			if err != nil || words < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid word target %q", args[1]))
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.library.UpdateBook(ctx, ids[0], store.Fields{"daily_target": words}); err != nil {
					return storeError("set target", err)
				}
				b, _ := a.library.Book(ids[0])
				return rootOpts.formatter(cmd).Render(b, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Daily target of %q is %d words\n", b.Title, b.DailyTarget)
					return err
				})
			})
		},
	}
}

func newBookArchiveCommand(rootOpts *RootOptions, archive bool) *cobra.Command {
	use, short, verb := "archive", "Archive books", "Archived"
	if !archive {
		use, short, verb = "unarchive", "Restore archived books", "Unarchived"
	}

	return &cobra.Command{
		Use:   use + " <book-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.selectBooks(ids); err != nil {
					return err
				}
				if archive {
					err = a.library.ArchiveSelected(ctx)
				} else {
					err = a.library.UnarchiveSelected(ctx)
				}
				if err != nil {
					return storeError(use, err)
				}
				return rootOpts.formatter(cmd).Render(map[string]any{"ids": ids, "archived": archive}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s %d book(s)\n", verb, len(ids))
					return err
				})
			})
		},
	}
}

func newBookPinCommand(rootOpts *RootOptions) *cobra.Command {
	var unpin bool

	cmd := &cobra.Command{
		Use:   "pin <book-id>",
		Short: "Pin a book to the top of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if unpin {
					err = a.library.Unpin(ctx, ids[0])
				} else {
					err = a.library.Pin(ctx, ids[0])
				}
				if err != nil {
					return storeError("pin", err)
				}
				b, _ := a.library.Book(ids[0])
				return rootOpts.formatter(cmd).Render(b, func(w io.Writer) error {
					state := "Pinned"
					if unpin {
						state = "Unpinned"
					}
					_, err := fmt.Fprintf(w, "%s %q\n", state, b.Title)
					return err
				})
			})
		},
	}

	cmd.Flags().BoolVar(&unpin, "unpin", false, "remove the pin instead")
	return cmd
}

func newBookDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <book-id>...",
		Short: "Delete books and everything they own",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.selectBooks(ids); err != nil {
					return err
				}
				if err := a.library.DeleteSelected(ctx); err != nil {
					return storeError("delete", err)
				}
				return rootOpts.formatter(cmd).Render(map[string]any{"deleted": ids}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Deleted %d book(s)\n", len(ids))
					return err
				})
			})
		},
	}
}

// selectBooks replaces the library selection with ids.
func (a *app) selectBooks(ids []int64) error {
	a.library.ClearSelection()
	for _, id := range ids {
		if _, ok := a.library.Book(id); !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("book %d not found", id))
		}
		a.library.Select(id)
	}
	return nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, s := range args {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id < 1 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s))
		}
		ids[i] = id
	}
	return ids, nil
}
