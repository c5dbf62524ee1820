package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bavix/presence/internal/mqttpub"
	"github.com/bavix/presence/internal/presence"
)

func newSnapshotCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the currently online devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := buildComponents(ctx, configFrom(ctx))

			snap := c.reconciler.Reconcile(ctx)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(mqttpub.NewMessage(snap))
			}

			return writeTable(out, snap, c.icons.Default())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func writeTable(w io.Writer, snap presence.Snapshot, fallbackIcon string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "MAC\tNAME\tTYPE\tIPV4\tONLINE\tSIGNAL\tICON")

	for _, d := range snap.Devices {
		signal := "-"
		if d.Wifi != nil {
			signal = d.Wifi.SignalText
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.MAC, d.Label(), d.ConnectionType, dash(d.IPv4), onlineFor(d.OnlineSeconds), signal, d.IconPath(fallbackIcon))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	wifi, wired := presence.Counts(snap.Devices)
	fmt.Fprintf(w, "\n%d online (%d wifi, %d wired)\n", len(snap.Devices), wifi, wired)

	if len(snap.FailedFeeds) > 0 {
		fmt.Fprintf(w, "unavailable: %s\n", strings.Join(snap.FailedFeeds, ", "))
	}

	return nil
}

func onlineFor(seconds *int64) string {
	if seconds == nil {
		return "-"
	}

	return (time.Duration(*seconds) * time.Second).String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
