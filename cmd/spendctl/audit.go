package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendsight/internal/analytics"
	"spendsight/internal/api"
	"spendsight/internal/dashboard"
)

func auditCmd(a *app) *cobra.Command {
	var action, search string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the activity log with its summary counts",
		Long: `Load the audit trail and print the summary cards followed by the
activity log. --action keeps one action type and --search matches user,
action or details.

Actions: ` + strings.Join(analytics.ActivityFilters, ", ") + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := a.dashboard(0)
			p, err := d.Refresh(cmd.Context(), dashboard.AuditTrailPage)
			if err != nil {
				return fmt.Errorf("load audit trail: %s", api.Message(err))
			}
			view, err := p.(dashboard.Filterable).FilteredView(action, search)
			if err != nil {
				return err
			}
			v := view.(dashboard.AuditTrailView)

			out := cmd.OutOrStdout()
			for _, c := range v.Summary.Data {
				fmt.Fprintf(out, "%-18s %s\n", c.Title, c.Value)
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tUSER\tACTION\tDETAILS")
			for _, r := range v.Logs.Data {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Date, r.User, r.Action, r.Details)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "action type to keep")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive text to match")
	return cmd
}
