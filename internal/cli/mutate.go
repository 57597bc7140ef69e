package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/user_board/internal/grid"
)

// Assignment is one column=value argument.
type Assignment struct {
	Column string
	Value  string
}

// ParseAssignments parses column=value arguments. Values may be empty.
func ParseAssignments(args []string) ([]Assignment, error) {
	out := make([]Assignment, 0, len(args))
	for _, arg := range args {
		col, val, ok := strings.Cut(arg, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("expected column=value, got %q", arg)
		}
		if !grid.IsEditable(col) {
			return nil, fmt.Errorf("%w: %q", grid.ErrColumnNotEditable, col)
		}
		out = append(out, Assignment{Column: col, Value: val})
	}
	return out, nil
}

func applyAssignments(g *grid.Grid, key string, assigns []Assignment) error {
	for _, a := range assigns {
		if err := g.EditCell(key, a.Column, a.Value); err != nil {
			return err
		}
	}
	return nil
}

func rowMissing(err error, key string, s *session) error {
	if errors.Is(err, grid.ErrRowNotFound) {
		return fmt.Errorf("row %s is not on page %d", key, s.grid.Page().PageNum)
	}
	return err
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add column=value...",
		Short: "Add a row and save it",
		Long: `Add a blank row, fill the given cells and save it. The server assigns a
temporary password, printed under the table.

Example:
  boardctl add email=carol@example.com nickname=carol role=designer`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assigns, err := ParseAssignments(args)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.fetch(ctx, 0); err != nil {
					return err
				}
				key := s.grid.AddRow()
				if err := applyAssignments(s.grid, key, assigns); err != nil {
					return err
				}
				return s.sync(ctx)
			})
		},
	}
}

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Page int
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <key> column=value...",
		Short: "Edit cells of a row and save them",
		Long: `Edit cells of a row on the current page and save them. Level columns
take a number; anything else sets the level to 0.

Example:
  boardctl edit 7 nickname=al backEndLevel=4`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assigns, err := ParseAssignments(args[1:])
			if err != nil {
				return err
			}
			key := args[0]
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.fetch(ctx, opts.Page); err != nil {
					return err
				}
				if err := applyAssignments(s.grid, key, assigns); err != nil {
					return rowMissing(err, key, s)
				}
				return s.sync(ctx)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Page, "page", "p", 0, "page holding the row (default: remembered page)")

	return cmd
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Page  int
	Range bool
	All   bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete rows and save",
		Long: `Select rows on the current page, delete them and save. With --range the
first key is clicked and the second shift-clicked, selecting every row
between them in display order.

Example:
  boardctl delete 3 5
  boardctl delete --range 3 9
  boardctl delete --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.All && len(args) > 0:
				return fmt.Errorf("--all takes no keys")
			case opts.Range && len(args) != 2:
				return fmt.Errorf("--range takes exactly two keys")
			case !opts.All && len(args) == 0:
				return fmt.Errorf("name at least one key, or use --all")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.fetch(ctx, opts.Page); err != nil {
					return err
				}
				if err := selectRows(s, opts, args); err != nil {
					return err
				}
				n := s.grid.DeleteSelected()
				s.log.WithFields(map[string]interface{}{"rows": n}).Debug("rows deleted locally")
				return s.sync(ctx)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Page, "page", "p", 0, "page holding the rows (default: remembered page)")
	cmd.Flags().BoolVar(&opts.Range, "range", false, "select every row between two keys")
	cmd.Flags().BoolVar(&opts.All, "all", false, "select every row on the page")

	return cmd
}

func selectRows(s *session, opts *DeleteOptions, keys []string) error {
	if opts.All {
		s.grid.SelectAll(true)
		return nil
	}
	for i, key := range keys {
		shift := opts.Range && i == 1
		if err := s.grid.Select(key, true, shift); err != nil {
			return rowMissing(err, key, s)
		}
	}
	return nil
}
