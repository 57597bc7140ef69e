package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Page    int
	PerPage int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a page of users",
		Long: `Print one page of users in the stored sort order.

Example:
  boardctl list
  boardctl list --page 2 --per-page 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if opts.PerPage > 0 {
					s.state.PerPage = opts.PerPage
					s.grid = newGridFor(s)
				}
				if err := s.fetch(ctx, opts.Page); err != nil {
					return err
				}
				return s.render()
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Page, "page", "p", 0, "page number (default: remembered page)")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 0, "rows per page, remembered for later runs")

	return cmd
}

// SortOptions holds flags for the sort command.
type SortOptions struct {
	*RootOptions
	Multi bool
	Set   string
	Clear bool
}

// NewSortCommand creates the sort command.
func NewSortCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SortOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sort [column...]",
		Short: "Change the sort order",
		Long: `Toggle sorting on columns the way clicking a header does: ascending,
then descending, then off. Without --multi the first column replaces the
current order; further columns are always added.

Example:
  boardctl sort email
  boardctl sort --multi backEndLevel
  boardctl sort --set role:asc,email:desc
  boardctl sort --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.Set == "" && !opts.Clear {
				return fmt.Errorf("name a column, or use --set or --clear")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := applySort(s, opts, args); err != nil {
					return err
				}
				s.state.Sort = user.FormatSort(s.grid.SortColumns())
				if err := s.fetch(ctx, 0); err != nil {
					return err
				}
				return s.render()
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Multi, "multi", "m", false, "add to the current order instead of replacing it")
	cmd.Flags().StringVar(&opts.Set, "set", "", "replace the order, e.g. email:asc,nickname:desc")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "remove all sort columns")

	return cmd
}

func applySort(s *session, opts *SortOptions, columns []string) error {
	if opts.Clear {
		if err := s.grid.SetSortColumns(nil); err != nil {
			return err
		}
	}
	if opts.Set != "" {
		cols, err := user.ParseSort(opts.Set)
		if err != nil {
			return err
		}
		if err := s.grid.SetSortColumns(cols); err != nil {
			return err
		}
	}
	for i, col := range columns {
		if err := s.grid.ToggleSort(col, opts.Multi || i > 0); err != nil {
			return err
		}
	}
	return nil
}
