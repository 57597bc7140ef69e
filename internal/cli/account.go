package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/client"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the tokens",
		Long: `Sign in with email and password. The password is prompted for when
--password is not given.

Example:
  boardctl login --email alice@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFrom(cmd, opts.Password)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				sess, err := s.client.Login(ctx, opts.Email, password)
				if err != nil {
					return err
				}
				s.state.Email = sess.User.Email
				s.state.AccessToken, s.state.RefreshToken = sess.AccessToken, sess.RefreshToken
				s.out.Success("signed in as %s (%s)", sess.User.Nickname, sess.User.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Email, "email", "e", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if s.state.RefreshToken == "" {
					s.out.Info("not signed in")
					return nil
				}
				err := s.client.Logout(ctx)
				s.state.ClearTokens()
				if err != nil && !client.IsUnauthorized(err) {
					return err
				}
				s.out.Success("signed out")
				return nil
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				me, err := s.client.Me(ctx)
				if err != nil {
					if client.IsUnauthorized(err) {
						s.state.ClearTokens()
					}
					return err
				}
				s.out.Info("%s <%s> id=%d role=%s", me.Nickname, me.Email, me.ID, me.Role)
				return nil
			})
		},
	}
}

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Input user.RegisterInput
	Front int
	Back  int
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account without signing in. The password is prompted for
when --password is not given.

Example:
  boardctl register --email alice@example.com --nickname alice --role backend`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := opts.Input
			password, err := passwordFrom(cmd, in.Password)
			if err != nil {
				return err
			}
			in.Password = password
			if cmd.Flags().Changed("front") {
				in.FrontEndLevel = &opts.Front
			}
			if cmd.Flags().Changed("back") {
				in.BackEndLevel = &opts.Back
			}
			if err := in.Validate(); err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				u, err := s.client.Register(ctx, in)
				if err != nil {
					return err
				}
				s.out.Success("registered %s with id %d", u.Email, u.ID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Input.Email, "email", "e", "", "email (required)")
	f.StringVarP(&opts.Input.Nickname, "nickname", "n", "", "nickname (required)")
	f.StringVar(&opts.Input.Password, "password", "", "password")
	f.StringVar((*string)(&opts.Input.Role), "role", "", "role")
	f.StringVar((*string)(&opts.Input.Gender), "gender", "", "gender")
	f.StringVar(&opts.Input.PhoneNumber, "phone", "", "phone number, 010-XXXX-XXXX")
	f.IntVar(&opts.Front, "front", user.DefaultLevel, "front-end level")
	f.IntVar(&opts.Back, "back", user.DefaultLevel, "back-end level")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("nickname")

	return cmd
}

// passwordFrom returns flag when set, otherwise prompts. Terminal input is
// read without echo.
func passwordFrom(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	in := cmd.InOrStdin()
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}
