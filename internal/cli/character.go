package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/model"
)

// CharacterRow is one line of `character list`.
type CharacterRow struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Relationships []RelationshipRow `json:"relationships"`
}

// RelationshipRow is a resolved relationship.
type RelationshipRow struct {
	Label    string `json:"label"`
	TargetID int64  `json:"target_id"`
	Target   string `json:"target"`
}

// NewCharacterCommand creates the character command group.
func NewCharacterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Manage the characters of a book",
	}
	cmd.AddCommand(newCharacterListCommand(rootOpts))
	cmd.AddCommand(newCharacterAddCommand(rootOpts))
	cmd.AddCommand(newCharacterDeleteCommand(rootOpts))
	return cmd
}

func newCharacterListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		bookID int64
		filter string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List characters and their relationships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.openBook(ctx, bookID); err != nil {
					return err
				}
				a.workspace.SetSearchTerm(filter)

				chars := a.workspace.FilteredCharacters()
				rows := make([]CharacterRow, len(chars))
				for i, c := range chars {
					rels := a.workspace.Relationships(c.ID)
					row := CharacterRow{ID: c.ID, Name: c.Name, Description: c.Description, Relationships: make([]RelationshipRow, len(rels))}
					for j, r := range rels {
						row.Relationships[j] = RelationshipRow{Label: r.Label, TargetID: r.Target.ID, Target: r.Target.Name}
					}
					rows[i] = row
				}
				return rootOpts.formatter(cmd).Render(rows, func(w io.Writer) error {
					return renderCharacters(w, rows)
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	cmd.Flags().StringVar(&filter, "filter", "", "only characters whose name or description contains this text")
	return cmd
}

func renderCharacters(w io.Writer, rows []CharacterRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No characters.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRELATIONSHIPS")
	for _, r := range rows {
		rels := make([]string, len(r.Relationships))
		for i, rel := range r.Relationships {
			rels[i] = fmt.Sprintf("%s of %s", rel.Label, rel.Target)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.Name, strings.Join(rels, "; "))
	}
	return tw.Flush()
}

func newCharacterAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		bookID      int64
		description string
		relations   []string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a character to a book",
		Long: `Add a character to a book.

Relationships are given as <character-id>:<label>, e.g. --rel 3:sister.
Targets that are not characters of the same book are dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rels, err := parseRelationships(relations)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				if err := a.openBook(ctx, bookID); err != nil {
					return err
				}
				id, err := a.workspace.AddCharacter(ctx, model.Character{
					Name:          args[0],
					Description:   description,
					Relationships: rels,
				})
				if err != nil {
					return storeError("add character", err)
				}
				c := a.workspace.CharactersByID()[id]
				return rootOpts.formatter(cmd).Render(c, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Added character %d: %s\n", c.ID, c.Name)
					return err
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	cmd.Flags().StringArrayVar(&relations, "rel", nil, "relationship as <character-id>:<label> (repeatable)")
	return cmd
}

func parseRelationships(specs []string) ([]model.Relationship, error) {
	rels := make([]model.Relationship, 0, len(specs))
	for _, s := range specs {
		target, label, ok := strings.Cut(s, ":")
		id, err := strconv.ParseInt(target, 10, 64)
		if !ok || err != nil || strings.TrimSpace(label) == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid relationship %q: want <character-id>:<label>", s))
		}
		rels = append(rels, model.Relationship{TargetID: id, Label: strings.TrimSpace(label)})
	}
	return rels, nil
}

func newCharacterDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "delete <character-id>",
		Short: "Delete a character",
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
				if err := a.requireChild(model.KindCharacter, ids[0]); err != nil {
					return err
				}
				if err := a.workspace.DeleteCharacter(ctx, ids[0]); err != nil {
					return storeError("delete character", err)
				}
				return rootOpts.formatter(cmd).Render(map[string]any{"deleted": ids[0]}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Deleted character %d\n", ids[0])
					return err
				})
			})
		},
	}

	bookFlag(cmd, &bookID)
	return cmd
}
