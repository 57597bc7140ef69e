package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/client"
	"github.com/R3E-Network/user_board/internal/grid"
	"github.com/R3E-Network/user_board/internal/logging"
)

var _ grid.Remote = (*client.Client)(nil)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server    string
	StatePath string
	Timeout   time.Duration
	Verbose   bool
}

// NewRootCommand creates the boardctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "boardctl",
		Short: "Manage the user board from a terminal",
		Long: `boardctl drives the user board grid against a userboard server.

Each command loads the current page into a local grid, applies its change
optimistically, saves the changeset and prints the resulting table. The
login, page and sort order are kept in a state file between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.StatePath == "" {
				opts.StatePath = DefaultStatePath()
			}
			if opts.Timeout <= 0 {
				return fmt.Errorf("timeout must be positive")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", "", "server base URL (default from state, then "+DefaultServer+")")
	cmd.PersistentFlags().StringVar(&opts.StatePath, "state", "", "state file path")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 15*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log requests to stderr")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSortCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

// session is the per-invocation wiring of state, client and grid.
type session struct {
	opts   *RootOptions
	state  *State
	client *client.Client
	grid   *grid.Grid
	out    *Printer
	log    *logging.Logger
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	st, err := LoadState(opts.StatePath)
	if err != nil {
		return nil, err
	}
	if opts.Server != "" {
		st.Server = opts.Server
	}
	if st.Server == "" {
		st.Server = DefaultServer
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	log := logging.NewWithOutput("boardctl", level, "text", cmd.ErrOrStderr())

	c := client.New(client.Config{BaseURL: st.Server, Timeout: opts.Timeout})
	c.SetTokens(st.AccessToken, st.RefreshToken)
	c.OnRefresh(func(access string) {
		log.Debug("access token refreshed")
		st.AccessToken = access
	})

	s := &session{
		opts:   opts,
		state:  st,
		client: c,
		out:    NewPrinter(cmd.OutOrStdout()),
		log:    log,
	}
	s.grid = newGridFor(s)
	return s, nil
}

// newGridFor builds an empty grid with the stored page size and sort order.
func newGridFor(s *session) *grid.Grid {
	g := grid.New(grid.WithPerPage(s.state.PerPage))
	if s.state.Sort == "" {
		return g
	}
	cols, err := user.ParseSort(s.state.Sort)
	if err == nil {
		err = g.SetSortColumns(cols)
	}
	if err != nil {
		s.log.WithError(err).Warn("ignoring stored sort order")
		s.state.Sort = ""
	}
	return g
}

// fetch loads pageNum, or the remembered page when pageNum is below 1.
func (s *session) fetch(ctx context.Context, pageNum int) error {
	if pageNum < 1 {
		pageNum = s.state.PageNum
	}
	if pageNum < 1 {
		pageNum = 1
	}
	s.log.WithFields(map[string]interface{}{"page": pageNum, "server": s.state.Server}).Debug("fetching page")
	if err := s.grid.Fetch(ctx, s.client, pageNum); err != nil {
		return fmt.Errorf("load page %d: %w", pageNum, err)
	}
	info := s.grid.Page()
	s.state.PageNum = info.PageNum
	if info.PageCount > 0 && info.PageNum > info.PageCount {
		// The page emptied, for example after deletes.
		return s.fetch(ctx, info.PageCount)
	}
	return nil
}

// sync saves pending changes and reloads the page.
func (s *session) sync(ctx context.Context) error {
	if s.grid.Changes().Empty() {
		s.out.Info("nothing to save")
		return nil
	}
	spin := s.out.NewSpinner("saving")
	spin.Start()
	report, err := s.grid.Sync(ctx, s.client)
	if err != nil {
		spin.Error("save failed")
		return err
	}
	spin.Success(fmt.Sprintf("created %d, updated %d, deleted %d", report.Created, report.Updated, report.Deleted))
	s.log.WithFields(map[string]interface{}{
		"created": report.Created,
		"updated": report.Updated,
		"deleted": report.Deleted,
		"failed":  report.Failed,
	}).Debug("changeset saved")

	if err := s.render(); err != nil {
		return err
	}
	if report.DeleteError != "" {
		return fmt.Errorf("deletes not saved, still pending: %s", report.DeleteError)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d row(s) failed to save", report.Failed)
	}
	return nil
}

func (s *session) render() error {
	return s.out.RenderGrid(s.grid)
}

func (s *session) close() error {
	return s.state.Save(s.opts.StatePath)
}

// withSession opens a session, runs fn and persists state even when fn
// fails, so refreshed tokens are not lost.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	runErr := fn(cmd.Context(), s)
	if err := s.close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
