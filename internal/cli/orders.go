package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/five82/fieldtech/internal/app"
	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/syncer"
	"github.com/five82/fieldtech/internal/workorder"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List your work orders",
		Long:          "List your work orders, with queued edits applied. Rows marked * have an update waiting to sync.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				token, err := env.Token()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !online(cmd.Context(), env) {
					fmt.Fprintln(out, "Offline: nothing cached to list. Queued updates:")
					return writePending(out, env.Engine.Pending(), time.Now())
				}
				if err := env.Engine.Refresh(cmd.Context(), token); err != nil {
					return err
				}
				snap := env.Cache.Snapshot()
				return writeOrders(out, snap.WorkOrders, func(wo workorder.WorkOrder) bool {
					return snap.IsPending(wo.ID)
				}, time.Now())
			})
		},
	}
}

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Status string
	Notes  string
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <work-order-id>",
		Short: "Change a work order's status and notes",
		Long: `Change a work order's status and notes.

Online, the change is written immediately. If the backend cannot be reached
the change is queued and replayed later; a newer change to the same work order
replaces the queued one.

Without --notes the current notes are kept.

Example:
  fieldtech update 0b7e... --status completed --notes "replaced filter"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				return updateWorkOrder(cmd, opts, env, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "new status (new, assigned, in_progress, completed, closed)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "new notes; replaces the existing notes")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}

func updateWorkOrder(cmd *cobra.Command, opts *UpdateOptions, env *app.Env, rawID string) error {
	id, err := parseWorkOrderID(rawID)
	if err != nil {
		return err
	}
	status, err := workorder.ParseStatus(opts.Status)
	if err != nil {
		return apperr.Wrap(apperr.InvalidInput, "invalid --status", err)
	}
	token, err := env.Token()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	isOnline := online(ctx, env)

	notes := opts.Notes
	if !cmd.Flags().Changed("notes") {
		notes, err = currentNotes(cmd, env, token, id, isOnline)
		if err != nil {
			return err
		}
	}

	outcome, err := env.Engine.SubmitUpdate(ctx, token, id, status, notes, isOnline)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch outcome {
	case syncer.OutcomeSynced:
		fmt.Fprintf(out, "Updated %s to %s.\n", id, status.Label())
	default:
		fmt.Fprintf(out, "Queued %s -> %s; it will sync when the backend is reachable (%d pending).\n",
			id, status.Label(), env.Engine.PendingCount())
	}
	return nil
}

// currentNotes finds the notes to keep when --notes is not given: the queued
// edit first, then the server copy.
func currentNotes(cmd *cobra.Command, env *app.Env, token string, id uuid.UUID, isOnline bool) (string, error) {
	if pending, ok := env.Engine.PendingFor(id); ok {
		return pending.Notes, nil
	}
	if isOnline {
		if err := env.Engine.Refresh(cmd.Context(), token); err != nil && apperr.IsUnauthorized(err) {
			return "", err
		}
		if wo, ok := env.Cache.Get(id); ok {
			return wo.Description, nil
		}
	}
	return "", apperr.Newf(apperr.NotFound, "work order %s is not available; pass --notes to set notes explicitly", id)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sync",
		Short:         "Replay queued updates now",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				token, err := env.Token()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !online(cmd.Context(), env) {
					fmt.Fprintf(out, "Offline: %d update(s) still queued.\n", env.Engine.PendingCount())
					return nil
				}
				result, err := env.Engine.Drain(cmd.Context(), token, true)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, describeDrain(result))
				return nil
			})
		},
	}
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pending",
		Short:         "Show updates waiting to sync",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				printWarnings(cmd.ErrOrStderr(), env)
				return writePending(cmd.OutOrStdout(), env.Engine.Pending(), time.Now())
			})
		},
	}
}

// NewDiscardCommand creates the discard command.
func NewDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <work-order-id>",
		Short: "Drop the queued update for a work order",
		Long: `Drop the queued update for a work order without sending it.

Use this for updates the server keeps refusing, for example because the work
order was deleted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				id, err := parseWorkOrderID(args[0])
				if err != nil {
					return err
				}
				removed, err := env.Engine.Discard(id)
				if err != nil {
					return err
				}
				if !removed {
					return apperr.Newf(apperr.NotFound, "no queued update for %s", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded queued update for %s.\n", id)
				return nil
			})
		},
	}
}

func writeOrders(w io.Writer, orders []workorder.WorkOrder, pending func(workorder.WorkOrder) bool, now time.Time) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "No work orders.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tUPDATED\tTITLE")
	for _, wo := range orders {
		mark := ""
		if pending(wo) {
			mark = "*"
		}
		updated := "-"
		if !wo.UpdatedAt.IsZero() {
			updated = humanize.RelTime(wo.UpdatedAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\t%s\n", wo.ID, wo.Status.Label(), mark, wo.Priority, updated, wo.Title)
	}
	return tw.Flush()
}

func writePending(w io.Writer, items []workorder.PendingUpdate, now time.Time) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No queued updates.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORK ORDER\tSTATUS\tQUEUED\tNOTES")
	for _, p := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.WorkOrderID, p.Status.Label(), humanize.RelTime(p.EnqueuedAt, now, "ago", "from now"), oneLine(p.Notes, 48))
	}
	return tw.Flush()
}

func describeDrain(r syncer.DrainResult) string {
	if r.Attempted == 0 {
		return "Nothing to sync."
	}
	if r.Remaining == 0 {
		return fmt.Sprintf("Synced %d update(s).", r.Synced)
	}
	return fmt.Sprintf("Synced %d of %d update(s); %d still queued.", r.Synced, r.Attempted, r.Remaining)
}
