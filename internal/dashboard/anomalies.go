package dashboard

import (
	"context"
	"time"

	"spendsight/internal/analytics"
	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/events"
	"spendsight/internal/fetch"
	"spendsight/internal/format"
	"spendsight/internal/log"
	"spendsight/internal/views"
)

// AnomalyMonitorView is the near-real-time anomaly page.
type AnomalyMonitorView struct {
	Page         string                             `json:"page"`
	Summary      views.Section[[]views.StatCard]    `json:"summary"`
	Severity     views.Section[[]views.SeverityBar] `json:"severity"`
	Types        views.Section[[]views.PieSlice]    `json:"types"`
	OverTime     views.Section[[]views.LinePoint]   `json:"overTime"`
	Integrity    views.Section[[]views.StatCard]    `json:"integrity"`
	Recent       views.Section[[]views.AnomalyRow]  `json:"recent"`
	PollInterval string                             `json:"pollInterval"`
}

// anomalyMonitor loads three anomaly resources independently and polls
// while started.
type anomalyMonitor struct {
	base
	src       Source
	anomalies *fetch.Slot[[]core.AnomalyRecord]
	stats     *fetch.Slot[api.AnomalyStats]
	recent    *fetch.Slot[[]core.AnomalyRecord]

	bus         *events.Bus
	poller      *fetch.Poller
	interval    time.Duration
	logger      *log.Logger
	notify      func(page string)
	unsubscribe func()
}

func newAnomalyMonitor(src Source, opts Options, logger *log.Logger, bus *events.Bus, notify func(string)) *anomalyMonitor {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = fetch.DefaultPollInterval
	}
	return &anomalyMonitor{
		base:      newBase(AnomalyMonitorPage, opts, logger),
		src:       src,
		anomalies: fetch.NewSlot[[]core.AnomalyRecord](),
		stats:     fetch.NewSlot[api.AnomalyStats](),
		recent:    fetch.NewSlot[[]core.AnomalyRecord](),
		bus:       bus,
		interval:  interval,
		logger:    logger,
		notify:    notify,
	}
}

func (p *anomalyMonitor) Topics() []events.Kind {
	return []events.Kind{events.AnomaliesChanged, events.ExpenseUploaded}
}

func (p *anomalyMonitor) Refresh(ctx context.Context) error {
	return p.independent(ctx,
		fetch.Bind(p.anomalies, "anomalies", p.src.ListAnomalies),
		fetch.Bind(p.stats, "anomaly_stats", p.src.AnomalyStats),
		fetch.Bind(p.recent, "recent_anomalies", func(ctx context.Context) ([]core.AnomalyRecord, error) {
			return p.src.RecentAnomalies(ctx, p.opts.RecentAnomalyLimit)
		}),
	)
}

// Start begins polling. Topic events on the bus force an immediate refresh.
func (p *anomalyMonitor) Start(ctx context.Context) error {
	trigger, unsubscribe := p.bus.Subscribe(1)
	filtered := make(chan events.Event, 1)
	p.poller = fetch.NewPoller(p.interval, func(ctx context.Context) {
		p.Refresh(ctx)
		if ctx.Err() == nil && p.notify != nil {
			p.notify(p.name)
		}
	}, filtered)

	go func() {
		defer close(filtered)
		for e := range trigger {
			if !p.wants(e.Kind) {
				continue
			}
			select {
			case filtered <- e:
			default:
			}
		}
	}()

	p.unsubscribe = unsubscribe
	if err := p.poller.Start(ctx); err != nil {
		unsubscribe()
		return err
	}
	p.logger.DebugContext(ctx, "Anomaly monitor polling", "interval", p.interval)
	return nil
}

func (p *anomalyMonitor) wants(k events.Kind) bool {
	for _, t := range p.Topics() {
		if t == k {
			return true
		}
	}
	return false
}

// Stop ends polling; no fetch is issued after it returns.
func (p *anomalyMonitor) Stop(ctx context.Context) error {
	if p.poller == nil {
		return nil
	}
	err := p.poller.Stop(ctx)
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	return err
}

func (p *anomalyMonitor) View() any {
	anomalies := p.anomalies.Snapshot()
	stats := p.stats.Snapshot()
	recent := p.recent.Snapshot()

	return AnomalyMonitorView{
		Page:         p.name,
		PollInterval: p.interval.String(),
		Summary: views.FromSnapshot(anomalies, func(a []core.AnomalyRecord) []views.StatCard {
			s := analytics.SummarizeSeverity(a)
			return []views.StatCard{
				{Title: "Total Flagged", Value: format.Number(int64(s.Total)), Subtitle: "Detected anomalies"},
				{Title: "High Risk", Value: format.Number(int64(s.Critical + s.High)), Subtitle: "Critical and high severity"},
				{Title: "Amount Under Review", Value: format.Currency(analytics.FlaggedAmount(a))},
				{Title: "Avg. Confidence", Value: format.Confidence(analytics.AverageConfidence(a))},
			}
		}),
		Severity: views.FromSnapshot(anomalies, func(a []core.AnomalyRecord) []views.SeverityBar {
			return views.SeverityBars(analytics.SummarizeSeverity(a))
		}),
		Types: views.FromSnapshot(anomalies, func(a []core.AnomalyRecord) []views.PieSlice {
			return views.TypePie(analytics.SummarizeByType(a))
		}),
		OverTime: views.FromSnapshot(anomalies, func(a []core.AnomalyRecord) []views.LinePoint {
			return views.CountLine(analytics.BuildAnomalyTrend(a, analytics.MonthKey,
				analytics.TrendOptions{Template: analytics.MonthTemplate, Measure: analytics.MeasureCount}))
		}),
		Integrity: views.FromSnapshot(stats, func(s api.AnomalyStats) []views.StatCard {
			score := analytics.ComputeIntegrityScore(s.FlaggedCount, s.FlaggedCount+s.NormalCount)
			return []views.StatCard{
				{Title: "Flagged Share", Value: format.Percentage(s.FlaggedPercentage), Subtitle: format.Number(int64(s.FlaggedCount)) + " flagged"},
				{Title: "Integrity Score", Value: format.Percentage(score), Subtitle: format.Number(int64(s.NormalCount)) + " clean transactions"},
			}
		}),
		Recent: views.FromSnapshot(recent, views.AnomalyRows),
	}
}
