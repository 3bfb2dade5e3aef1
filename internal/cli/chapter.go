package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/workspace"
)

// ChapterRow is one line of `chapter list`.
type ChapterRow struct {
	model.Chapter
	Characters []string `json:"characters"`
}

// NewChapterCommand creates the chapter command group.
func NewChapterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter",
		Short: "Manage the chapters of a book",
	}
	cmd.AddCommand(newChapterListCommand(rootOpts))
	cmd.AddCommand(newChapterAddCommand(rootOpts))
	cmd.AddCommand(newChapterWordsCommand(rootOpts))
	cmd.AddCommand(newChapterMoveCommand(rootOpts))
	cmd.AddCommand(newChapterDeleteCommand(rootOpts))
	return cmd
}

// bookFlag registers the required --book flag.
func bookFlag(cmd *cobra.Command, id *int64) {
	cmd.Flags().Int64Var(id, "book", 0, "book id")
	_ = cmd.MarkFlagRequired("book")
}

func newChapterListCommand(rootOpts *RootOptions) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chapters in reading order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.openBook(ctx, bookID); err != nil {
					return err
				}
				chapters := a.workspace.Chapters()
				rows := make([]ChapterRow, len(chapters))
				for i, c := range chapters {
					rows[i] = ChapterRow{Chapter: c, Characters: characterNames(a.workspace.ChapterCharacters(c.ID))}
				}
				return rootOpts.formatter(cmd).Render(rows, func(w io.Writer) error {
					return renderChapters(w, rows)
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	return cmd
}

func renderChapters(w io.Writer, rows []ChapterRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No chapters.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tTITLE\tWORDS\tCHARACTERS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", r.Order, r.ID, r.Title, r.WordCount, strings.Join(r.Characters, ", "))
	}
	return tw.Flush()
}

func characterNames(cs []model.Character) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

func newChapterAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		bookID     int64
		words      int
		characters []int64
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Append a chapter to a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if words < 0 {
				return NewExitError(ExitCommandError, "--words must not be negative")
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.openBook(ctx, bookID); err != nil {
					return err
				}
				id, err := a.workspace.AddChapter(ctx, model.Chapter{
					Title:        args[0],
					WordCount:    words,
					CharacterIDs: characters,
				})
				if err != nil {
					return storeError("add chapter", err)
				}
				ch := findByID(a.workspace.Chapters(), id, func(c model.Chapter) int64 { return c.ID })
				return rootOpts.formatter(cmd).Render(ch, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Added chapter %d (#%d): %s\n", ch.ID, ch.Order, ch.Title)
					return err
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	cmd.Flags().IntVar(&words, "words", 0, "word count of the chapter")
	cmd.Flags().Int64SliceVar(&characters, "character", nil, "id of a character appearing in the chapter (repeatable)")
	return cmd
}

func newChapterWordsCommand(rootOpts *RootOptions) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "words <chapter-id> <count>",
		Short: "Set a chapter's word count and log the progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			count, err := strconv.Atoi(args[1])
			if err != nil || count < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid word count %q", args[1]))
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.openBook(ctx, bookID); err != nil {
					return err
				}
				if err := a.requireChild(model.KindChapter, ids[0]); err != nil {
					return err
				}
				if err := a.workspace.UpdateChapter(ctx, ids[0], workspace.Fields{"word_count": count}); err != nil {
					return storeError("update chapter", err)
				}
				book, _ := a.workspace.Book()
				return rootOpts.formatter(cmd).Render(book, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%q now has %d words\n", book.Title, book.WordCount)
					return err
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	return cmd
}

func newChapterMoveCommand(rootOpts *RootOptions) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a chapter to another position (1-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, errFrom := strconv.Atoi(args[0])
			to, errTo := strconv.Atoi(args[1])
			if errFrom != nil || errTo != nil {
				return NewExitError(ExitCommandError, "positions must be integers")
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.openBook(ctx, bookID); err != nil {
					return err
				}
				if err := a.workspace.MoveChapter(ctx, from-1, to-1); err != nil {
					return storeError("move chapter", err)
				}
				chapters := a.workspace.Chapters()
				return rootOpts.formatter(cmd).Render(chapters, func(w io.Writer) error {
					for _, c := range chapters {
						if _, err := fmt.Fprintf(w, "%d. %s\n", c.Order, c.Title); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	return cmd
}

func newChapterDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "delete <chapter-id>",
		Short: "Delete a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.openBook(ctx, bookID); err != nil {
					return err
				}
				if err := a.requireChild(model.KindChapter, ids[0]); err != nil {
					return err
				}
				if err := a.workspace.DeleteChapter(ctx, ids[0]); err != nil {
					return storeError("delete chapter", err)
				}
				return rootOpts.formatter(cmd).Render(map[string]any{"deleted": ids[0]}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Deleted chapter %d\n", ids[0])
					return err
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	return cmd
}

// requireChild fails when id is not a child of kind in the open book.
func (a *app) requireChild(kind model.Kind, id int64) error {
	var found bool
	switch kind {
	case model.KindChapter:
		found = findByID(a.workspace.Chapters(), id, func(c model.Chapter) int64 { return c.ID }).ID != 0
	case model.KindCharacter:
		_, found = a.workspace.CharactersByID()[id]
	}
	if !found {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s %d not found in book %d", kind, id, a.workspace.BookID()))
	}
	return nil
}

func findByID[T any](items []T, id int64, key func(T) int64) T {
	for _, it := range items {
		if key(it) == id {
			return it
		}
	}
	var zero T
	return zero
}
