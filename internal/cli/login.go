package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/five82/fieldtech/internal/app"
	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/session"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email         string
	PasswordStdin bool
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Long: `Sign in with your email and password. The session is saved under the
data directory so later commands and the TUI start signed in.

Without flags an interactive form is shown. For scripts:
  echo "$PASSWORD" | fieldtech login --email tech@example.com --password-stdin`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				return login(cmd, opts, env)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from stdin")

	return cmd
}

func login(cmd *cobra.Command, opts *LoginOptions, env *app.Env) error {
	email := strings.TrimSpace(opts.Email)
	var password string

	if opts.PasswordStdin {
		if email == "" {
			return apperr.New(apperr.InvalidInput, "--password-stdin requires --email")
		}
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return apperr.Wrap(apperr.InvalidInput, "read password from stdin", err)
		}
		password = strings.TrimRight(line, "\r\n")
	} else {
		if current, ok := env.Auth.Current(); ok && email == "" {
			email = current.Email
		}
		if err := promptCredentials(&email, &password, env.Config.Theme); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
	}
	if email == "" || password == "" {
		return apperr.New(apperr.InvalidInput, "email and password are required")
	}

	auth, err := env.Client.SignIn(cmd.Context(), email, password)
	if err != nil {
		if apperr.IsUnauthorized(err) {
			return apperr.New(apperr.InvalidInput, "email or password is incorrect")
		}
		return err
	}
	if err := env.Auth.Set(session.FromAuth(email, auth, time.Now())); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s\n", email)

	// Anything queued while signed out can go now.
	if env.Engine.PendingCount() > 0 && online(cmd.Context(), env) {
		result, err := env.Engine.Drain(cmd.Context(), auth.AccessToken, true)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, describeDrain(result))
	}
	return nil
}

func promptCredentials(email, password *string, themeName string) error {
	theme := huh.ThemeCharm()
	if themeName == "Dracula" {
		theme = huh.ThemeDracula()
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(func(s string) error {
					if !strings.Contains(s, "@") {
						return errors.New("enter an email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password),
		),
	).WithTheme(theme)
	return form.Run()
}
