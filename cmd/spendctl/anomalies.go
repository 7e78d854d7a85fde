package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/format"
	"spendsight/internal/views"
)

func anomaliesCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List the most recent anomalies with the flagged share",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				limit = a.cfg.RecentAnomalyLimit
			}

			var (
				recent []core.AnomalyRecord
				stats  api.AnomalyStats
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				recent, err = a.client.RecentAnomalies(ctx, limit)
				return err
			})
			g.Go(func() (err error) {
				stats, err = a.client.AnomalyStats(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return fmt.Errorf("load anomalies: %s", api.Message(err))
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DETECTED\tVENDOR\tCATEGORY\tAMOUNT\tTYPE\tSEVERITY\tCONFIDENCE")
			for _, r := range views.AnomalyRows(recent) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Date, r.Vendor, r.Category, r.Amount, r.Type, r.Severity, r.Confidence)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\nFlagged expenses: %d of %d (%s)\n",
				stats.FlaggedCount, stats.FlaggedCount+stats.NormalCount, format.Percentage(stats.FlaggedPercentage))
			for _, sev := range core.Severities {
				if n, ok := stats.BySeverity[sev.String()]; ok {
					fmt.Fprintf(out, "  %-9s %d\n", sev, n)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of anomalies to show (default $RECENT_ANOMALY_LIMIT)")
	return cmd
}
