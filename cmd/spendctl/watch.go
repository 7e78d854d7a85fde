package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"spendsight/internal/dashboard"
	"spendsight/internal/format"
)

func watchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the anomaly monitor and print a line per refresh",
		Long: `Poll the anomaly monitor page at a fixed interval and print its headline
numbers after every refresh until interrupted (or until --count refreshes).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			d := a.dashboard(interval)
			page, err := d.Page(dashboard.AnomalyMonitorPage)
			if err != nil {
				return err
			}

			w := &watchPrinter{out: cmd.OutOrStdout(), limit: count, done: cancel}
			d.OnRefresh(func(name string) {
				if name == dashboard.AnomalyMonitorPage {
					w.print(page.View())
				}
			})

			if err := d.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			return d.Stop(stopCtx)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default $POLL_INTERVAL)")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many refreshes (0 runs until interrupted)")
	return cmd
}

// watchPrinter serializes output from poller callbacks.
type watchPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	n     int
	limit int
	done  func()
}

func (w *watchPrinter) print(v any) {
	view, ok := v.(dashboard.AnomalyMonitorView)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.limit > 0 && w.n >= w.limit {
		return
	}
	w.n++

	var parts []string
	if view.Summary.Error != "" {
		parts = append(parts, "error: "+view.Summary.Error)
	}
	for _, c := range view.Summary.Data {
		parts = append(parts, c.Title+"="+c.Value)
	}
	for _, c := range view.Integrity.Data {
		parts = append(parts, c.Title+"="+c.Value)
	}
	fmt.Fprintf(w.out, "[%s] %s\n", format.DateTime(time.Now()), strings.Join(parts, "  "))

	if w.limit > 0 && w.n >= w.limit {
		w.done()
	}
}
