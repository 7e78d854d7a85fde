package main

import (
	"strings"

	"github.com/spf13/cobra"

	"spendsight/internal/log"
)

func pageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "page <name>",
		Short: "Load one dashboard page and print its view as JSON",
		Long: `Load one dashboard page the way the dashboard server does and print the
resulting view. Sections that failed to load carry their error inline.

Pages: admin-overview, employee-overview, expense-categories,
anomaly-monitor, reports, audit-trail, settings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard(0)
			p, err := d.Refresh(cmd.Context(), strings.TrimSpace(args[0]))
			if p == nil {
				return err
			}
			if err != nil {
				a.logger.Warn("Page loaded with errors", log.FieldPage, args[0], log.FieldError, err)
			}
			return printJSON(cmd.OutOrStdout(), p.View())
		},
	}
}
