package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/five82/fieldtech/internal/app"
	"github.com/five82/fieldtech/internal/apperr"
)

// NewAttachCommand creates the attach command.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <work-order-id> <image>",
		Short: "Upload a photo to a work order",
		Long: `Upload a photo to a work order. The image is downscaled and re-encoded as
JPEG before upload. Uploads need a connection; they are not queued.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				id, err := parseWorkOrderID(args[0])
				if err != nil {
					return err
				}
				token, err := env.Token()
				if err != nil {
					return err
				}
				if !online(cmd.Context(), env) {
					return apperr.New(apperr.Transport, "photo uploads need a connection")
				}
				info, err := os.Stat(args[1])
				if err != nil {
					return apperr.Wrap(apperr.InvalidInput, "read photo", err)
				}
				path, err := env.Attachments.UploadFile(cmd.Context(), token, id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s) as %s\n", args[1], humanize.Bytes(uint64(info.Size())), path)
				return nil
			})
		},
	}
}

// NewPhotosCommand creates the photos command.
func NewPhotosCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "photos <work-order-id>",
		Short:         "List a work order's photos with download links",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, func(env *app.Env) error {
				id, err := parseWorkOrderID(args[0])
				if err != nil {
					return err
				}
				token, err := env.Token()
				if err != nil {
					return err
				}
				items, err := env.Attachments.List(cmd.Context(), token, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No photos.")
					return nil
				}
				now := time.Now()
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ADDED\tPATH\tURL")
				for _, a := range items {
					url := a.SignedURL
					if url == "" {
						url = "(unavailable)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", humanize.RelTime(a.CreatedAt, now, "ago", "from now"), a.StoragePath, url)
				}
				return tw.Flush()
			})
		},
	}
}

// oneLine flattens s to a single line of at most limit runes.
func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
