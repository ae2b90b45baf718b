package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bebetter/internal/app"
)

// AccountOptions holds flags for register and login.
type AccountOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account on the server",
		Long: `Create an account on the bebetter server. Registering does not sign
you in; run bebetter login afterwards.

The password is read from stdin when --password is omitted.

Example:
  bebetter register alice --email alice@example.com
  echo "s3cret" | bebetter register alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				password, err := readPassword(opts.Password, cmd.InOrStdin())
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
				}
				id, err := a.Register(ctx, args[0], opts.Email, password)
				if err != nil {
					return failApp(f, err)
				}
				return f.Success(map[string]string{"id": id, "username": args[0]},
					goodStyle.Render("Registered "+args[0])+mutedStyle.Render(" (run bebetter login)"))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "optional email address")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (read from stdin if omitted)")

	return cmd
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and pull your totals from the server",
		Long: `Sign in to the bebetter server. The session token is stored locally
and the server's xp, coins and level replace the local values.

Example:
  bebetter login alice --password s3cret`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				password, err := readPassword(opts.Password, cmd.InOrStdin())
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
				}
				if err := a.Login(ctx, args[0], password); err != nil {
					return failApp(f, err)
				}
				st, err := a.Status(ctx)
				if err != nil {
					return failApp(f, err)
				}
				return f.Success(st, goodStyle.Render("Signed in as "+args[0])+"\n"+renderStatus(st))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Password, "password", "", "password (read from stdin if omitted)")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Sign out; the ledger keeps working offline",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				if err := a.Logout(ctx); err != nil {
					return failApp(f, err)
				}
				return f.Success(map[string]bool{"signed_in": false}, "Signed out")
			})
		},
	}
}

func readPassword(flag string, in io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
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
