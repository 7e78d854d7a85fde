package dashboard

import (
	"context"

	"spendsight/internal/core"
	"spendsight/internal/events"
	"spendsight/internal/fetch"
	"spendsight/internal/log"
	"spendsight/internal/views"
)

// ReportsView is the compliance report page.
type ReportsView struct {
	Page       string                             `json:"page"`
	Summary    views.Section[[]views.StatCard]    `json:"summary"`
	Trend      views.Section[[]views.LinePoint]   `json:"trend"`
	Categories views.Section[[]views.Bar]         `json:"categories"`
	Severity   views.Section[[]views.SeverityBar] `json:"severity"`
	Types      views.Section[[]views.PieSlice]    `json:"types"`
	Text       views.Section[string]              `json:"text"`
}

// reports loads expenses and anomalies independently. Sections drawn from
// one resource survive a failure of the other; the summary and the text
// export need both.
type reports struct {
	base
	src       Source
	expenses  *fetch.Slot[[]core.ExpenseRecord]
	anomalies *fetch.Slot[[]core.AnomalyRecord]
}

func newReports(src Source, opts Options, logger *log.Logger) *reports {
	return &reports{
		base:      newBase(ReportsPage, opts, logger),
		src:       src,
		expenses:  fetch.NewSlot[[]core.ExpenseRecord](),
		anomalies: fetch.NewSlot[[]core.AnomalyRecord](),
	}
}

func (p *reports) Topics() []events.Kind {
	return []events.Kind{events.ExpenseUploaded, events.AnomaliesChanged}
}

func (p *reports) Refresh(ctx context.Context) error {
	return p.independent(ctx,
		fetch.Bind(p.expenses, "expenses", p.src.ListExpenses),
		fetch.Bind(p.anomalies, "anomalies", p.src.ListAnomalies),
	)
}

// Report returns the current report section.
func (p *reports) Report() views.Section[views.Report] {
	return views.Combine(p.expenses.Snapshot(), p.anomalies.Snapshot(),
		func(e []core.ExpenseRecord, a []core.AnomalyRecord) views.Report {
			return views.BuildReport(e, a, p.opts.Now())
		})
}

func (p *reports) View() any {
	report := p.Report()
	expenseOnly := func(e []core.ExpenseRecord) views.Report { return views.BuildReport(e, nil, p.opts.Now()) }
	anomalyOnly := func(a []core.AnomalyRecord) views.Report { return views.BuildReport(nil, a, p.opts.Now()) }
	expenses := views.FromSnapshot(p.expenses.Snapshot(), expenseOnly)
	anomalies := views.FromSnapshot(p.anomalies.Snapshot(), anomalyOnly)
	return ReportsView{
		Page:       p.name,
		Summary:    project(report, views.Report.Cards),
		Trend:      project(expenses, func(r views.Report) []views.LinePoint { return views.AmountLine(r.Trend) }),
		Categories: project(expenses, func(r views.Report) []views.Bar { return views.CategoryBars(r.Categories) }),
		Severity:   project(anomalies, func(r views.Report) []views.SeverityBar { return views.SeverityBars(r.Severity) }),
		Types:      project(anomalies, func(r views.Report) []views.PieSlice { return views.TypePie(r.Types) }),
		Text:       project(report, views.Report.Text),
	}
}

// ReportSource is implemented by pages that can produce a full report.
type ReportSource interface {
	Report() views.Section[views.Report]
}

func project[T any](sec views.Section[views.Report], fn func(views.Report) T) views.Section[T] {
	out := views.Section[T]{Error: sec.Error, Loading: sec.Loading, UpdatedAt: sec.UpdatedAt}
	if sec.UpdatedAt != nil {
		out.Data = fn(sec.Data)
	}
	return out
}
