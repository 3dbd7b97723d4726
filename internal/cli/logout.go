package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/fieldtech/internal/app"
)

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Remove the saved session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				if err := env.Auth.Clear(); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Signed out.")
				if n := env.Engine.PendingCount(); n > 0 {
					fmt.Fprintf(out, "%d queued update(s) are kept and will sync after the next login.\n", n)
				}
				return nil
			})
		},
	}
}
