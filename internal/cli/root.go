package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/five82/fieldtech/internal/app"
	"github.com/five82/fieldtech/internal/apperr"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Offline    bool

	// open and runTUI are swapped out in tests.
	open   func(app.Options) (*app.Env, error)
	runTUI func(context.Context, app.Options) error
}

func (o *RootOptions) appOptions() app.Options {
	return app.Options{ConfigPath: o.ConfigPath, Offline: o.Offline}
}

// openEnv opens the application for a one-shot command. The caller must
// Close the returned Env.
func (o *RootOptions) openEnv() (*app.Env, error) {
	open := o.open
	if open == nil {
		open = app.Open
	}
	return open(o.appOptions())
}

// NewRootCommand creates the fieldtech root command. Without a subcommand it
// starts the TUI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fieldtech",
		Short: "Work orders for field technicians, online or off",
		Long: `fieldtech shows the work orders assigned to you and lets you update
their status and notes. Updates made without a connection are queued on disk
and replayed automatically once the backend is reachable again.

Run without a subcommand to open the terminal UI.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			run := opts.runTUI
			if run == nil {
				run = app.Run
			}
			return run(cmd.Context(), opts.appOptions())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.config/fieldtech/config.toml)")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "never contact the backend; queue every update")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewDiscardCommand(opts))
	cmd.AddCommand(NewAttachCommand(opts))
	cmd.AddCommand(NewPhotosCommand(opts))

	return cmd
}

// withEnv opens the application, runs fn and closes it again.
func withEnv(opts *RootOptions, fn func(env *app.Env) error) error {
	env, err := opts.openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()
	for _, w := range env.Warnings {
		env.Logger.WithError(w).Warn("startup warning")
	}
	err = fn(env)
	env.SignOutOnUnauthorized(err)
	if apperr.IsUnauthorized(err) {
		return fmt.Errorf("%w (run `fieldtech login`)", err)
	}
	return err
}

// online reports whether the backend should be contacted. --offline wins
// over a reachable backend.
func online(ctx context.Context, env *app.Env) bool {
	if env.Monitor.ForcedOffline() {
		return false
	}
	return env.Online(ctx)
}

func parseWorkOrderID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.InvalidInput, fmt.Sprintf("invalid work order id %q", value), err)
	}
	return id, nil
}

func printWarnings(w io.Writer, env *app.Env) {
	for _, warning := range env.Warnings {
		fmt.Fprintf(w, "warning: %v\n", warning)
	}
}
