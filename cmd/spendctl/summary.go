package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendsight/internal/dashboard"
	"spendsight/internal/format"
	"spendsight/internal/views"
)

func summaryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print headline totals and spending by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.loadReport(cmd)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, c := range report.Cards() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Title, c.Value, c.Subtitle)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tCOUNT\tSHARE")
			for _, c := range report.Categories {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d%%\n", c.Category, format.Currency(c.Amount), c.Count, c.Percentage)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// loadReport fetches expenses and anomalies as one batch and builds the
// compliance report.
func (a *app) loadReport(cmd *cobra.Command) (views.Report, error) {
	d := a.dashboard(0)
	p, err := d.Refresh(cmd.Context(), dashboard.ReportsPage)
	if err != nil {
		return views.Report{}, fmt.Errorf("load report: %w", err)
	}
	src, ok := p.(dashboard.ReportSource)
	if !ok {
		return views.Report{}, errors.New("reports page cannot build a report")
	}
	sec := src.Report()
	if sec.Error != "" {
		return views.Report{}, errors.New(sec.Error)
	}
	return sec.Data, nil
}
