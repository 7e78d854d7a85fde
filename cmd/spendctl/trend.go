package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendsight/internal/analytics"
	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/format"
)

func trendCmd(a *app) *cobra.Command {
	var (
		period    string
		anomalies bool
	)
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Print spending or anomaly counts per period",
		Long: `Print spending per period. --period month folds every year onto the
Jan..Dec template the dashboard charts use; --period year-month keeps
calendar months apart and reports the month-over-month change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				key  analytics.PeriodKeyFunc
				opts analytics.TrendOptions
			)
			switch strings.ToLower(period) {
			case "month":
				key, opts.Template = analytics.MonthKey, analytics.MonthTemplate
			case "year-month":
				key = analytics.YearMonthKey
			default:
				return fmt.Errorf("invalid period %q: must be month or year-month", period)
			}

			var points []core.TrendPoint
			if anomalies {
				records, err := a.client.ListAnomalies(cmd.Context())
				if err != nil {
					return fmt.Errorf("load anomalies: %s", api.Message(err))
				}
				opts.Measure = analytics.MeasureCount
				points = analytics.BuildAnomalyTrend(records, key, opts)
			} else {
				records, err := a.client.ListExpenses(cmd.Context())
				if err != nil {
					return fmt.Errorf("load expenses: %s", api.Message(err))
				}
				points = analytics.BuildTrendSeries(records, key, opts)
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			for _, p := range points {
				value := format.Currency(p.Value)
				if anomalies {
					value = format.Number(int64(p.Value))
				}
				fmt.Fprintf(tw, "%s\t%s\t\n", p.Label, value)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !anomalies && opts.Template == nil && len(points) >= 2 {
				fmt.Fprintf(out, "\nMonth over month: %s\n", format.Percentage(analytics.MonthOverMonth(points)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "month", "bucket by month (Jan..Dec) or year-month")
	cmd.Flags().BoolVar(&anomalies, "anomalies", false, "count detected anomalies instead of summing expenses")
	return cmd
}
