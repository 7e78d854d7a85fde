package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spendsight/internal/api"
	"spendsight/internal/cli"
	"spendsight/internal/config"
	"spendsight/internal/core"
	"spendsight/internal/dashboard"
	"spendsight/internal/log"
)

// app is the state shared by every subcommand, filled in by the root
// command's PersistentPreRunE.
type app struct {
	apiURL   string
	timeout  time.Duration
	role     string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
	client *api.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "spendctl",
		Short: "Inspect expense analytics from the command line",
		Long: `spendctl reads the expense API and prints the same summaries the
dashboard shows: totals, anomalies, monthly trends, the audit trail
and settings.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "expense API base URL (default $API_BASE_URL)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "per-request timeout (default $REQUEST_TIMEOUT)")
	root.PersistentFlags().StringVar(&a.role, "role", "", "dashboard role: admin, auditor or employee (default $DASHBOARD_ROLE)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(summaryCmd(a))
	root.AddCommand(pageCmd(a))
	root.AddCommand(anomaliesCmd(a))
	root.AddCommand(auditCmd(a))
	root.AddCommand(trendCmd(a))
	root.AddCommand(watchCmd(a))
	root.AddCommand(settingsCmd(a))
	root.AddCommand(exportCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	cfg := config.Load()
	if a.apiURL != "" {
		cfg.APIBaseURL = a.apiURL
	}
	if a.timeout > 0 {
		cfg.RequestTimeout = a.timeout
	}
	if a.role != "" {
		cfg.DashboardRole = a.role
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.SlogLevel()
	a.cfg = cfg
	a.logger = log.New(log.Config{
		Level:     level,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}),
	})
	a.client = api.New(cfg.APIBaseURL, cfg.RequestTimeout, api.WithLogger(a.logger))
	return nil
}

func (a *app) dashboard(poll time.Duration) *dashboard.Dashboard {
	if poll <= 0 {
		poll = a.cfg.PollInterval
	}
	return dashboard.New(a.client, nil, dashboard.Options{
		Role:               a.cfg.DashboardRole,
		PollInterval:       poll,
		RequestTimeout:     a.cfg.RequestTimeout,
		RecentAnomalyLimit: a.cfg.RecentAnomalyLimit,
	}, a.logger)
}

func validRole(role string) error {
	if !core.IsRole(role) {
		return fmt.Errorf("invalid role %q: must be one of %v", role, core.Roles)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
