package dashboard

import (
	"context"
	"errors"

	"spendsight/internal/analytics"
	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/events"
	"spendsight/internal/fetch"
	"spendsight/internal/format"
	"spendsight/internal/log"
	"spendsight/internal/views"
)

const recentExpenseRows = 5

type base struct {
	name string
	orch *fetch.Orchestrator
	opts Options
}

func newBase(name string, opts Options, logger *log.Logger) base {
	return base{
		name: name,
		orch: fetch.NewOrchestrator(name, opts.RequestTimeout, logger.WithComponent(log.ComponentFetch)),
		opts: opts,
	}
}

func (b base) Name() string { return b.name }

// independent runs tasks with per-section isolation and joins the errors of
// the sections that failed.
func (b base) independent(ctx context.Context, tasks ...fetch.Task) error {
	var errs []error
	for _, r := range b.orch.Independent(ctx, tasks...) {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Admin overview: server stats and the expense list load independently.

type AdminOverviewView struct {
	Page        string                            `json:"page"`
	Summary     views.Section[[]views.StatCard]   `json:"summary"`
	CategoryPie views.Section[[]views.PieSlice]   `json:"categoryPie"`
	Queue       views.Section[[]views.StatCard]   `json:"queue"`
	Recent      views.Section[[]views.ExpenseRow] `json:"recent"`
}

type adminOverview struct {
	base
	src      Source
	stats    *fetch.Slot[api.ExpenseStats]
	expenses *fetch.Slot[[]core.ExpenseRecord]
}

func newAdminOverview(src Source, opts Options, logger *log.Logger) *adminOverview {
	return &adminOverview{
		base:     newBase(AdminOverviewPage, opts, logger),
		src:      src,
		stats:    fetch.NewSlot[api.ExpenseStats](),
		expenses: fetch.NewSlot[[]core.ExpenseRecord](),
	}
}

func (p *adminOverview) Topics() []events.Kind { return []events.Kind{events.ExpenseUploaded} }

func (p *adminOverview) Refresh(ctx context.Context) error {
	return p.independent(ctx,
		fetch.Bind(p.stats, "expense_stats", p.src.ExpenseStats),
		fetch.Bind(p.expenses, "expenses", p.src.ListExpenses),
	)
}

func (p *adminOverview) View() any {
	stats := p.stats.Snapshot()
	expenses := p.expenses.Snapshot()
	return AdminOverviewView{
		Page: p.name,
		Summary: views.FromSnapshot(stats, func(s api.ExpenseStats) []views.StatCard {
			return []views.StatCard{
				{Title: "Total Expenses", Value: format.Currency(s.TotalAmount), Subtitle: "Total amount"},
				{Title: "Receipts", Value: format.Number(int64(s.TotalExpenses)), Subtitle: "Uploaded receipts"},
			}
		}),
		CategoryPie: views.FromSnapshot(stats, func(s api.ExpenseStats) []views.PieSlice {
			return views.ServerCategoryPie(s.ByCategory, s.CategoryPercentages)
		}),
		Queue: views.FromSnapshot(expenses, func(recs []core.ExpenseRecord) []views.StatCard {
			return []views.StatCard{
				{Title: "Pending Review", Value: format.Number(int64(analytics.PendingCount(recs))), Subtitle: "Awaiting approval"},
				{Title: "Flagged Items", Value: format.Number(int64(analytics.FlaggedCount(recs))), Subtitle: "Requires attention"},
			}
		}),
		Recent: views.FromSnapshot(expenses, func(recs []core.ExpenseRecord) []views.ExpenseRow {
			return views.ExpenseRows(recs, recentExpenseRows)
		}),
	}
}

// Employee overview: one expense list, aggregated client-side.

type EmployeeOverviewView struct {
	Page         string                            `json:"page"`
	Summary      views.Section[[]views.StatCard]   `json:"summary"`
	CategoryPie  views.Section[[]views.PieSlice]   `json:"categoryPie"`
	MonthlyTrend views.Section[[]views.LinePoint]  `json:"monthlyTrend"`
	Expenses     views.Section[[]views.ExpenseRow] `json:"expenses"`
}

type employeeOverview struct {
	base
	src      Source
	expenses *fetch.Slot[[]core.ExpenseRecord]
}

func newEmployeeOverview(src Source, opts Options, logger *log.Logger) *employeeOverview {
	return &employeeOverview{
		base:     newBase(EmployeeOverviewPage, opts, logger),
		src:      src,
		expenses: fetch.NewSlot[[]core.ExpenseRecord](),
	}
}

func (p *employeeOverview) Topics() []events.Kind { return []events.Kind{events.ExpenseUploaded} }

func (p *employeeOverview) Refresh(ctx context.Context) error {
	return p.independent(ctx, fetch.Bind(p.expenses, "expenses", p.src.ListExpenses))
}

func (p *employeeOverview) View() any {
	expenses := p.expenses.Snapshot()
	return EmployeeOverviewView{
		Page: p.name,
		Summary: views.FromSnapshot(expenses, func(recs []core.ExpenseRecord) []views.StatCard {
			t := analytics.ComputeTotals(recs)
			return []views.StatCard{
				{Title: "My Total Expenses", Value: format.Currency(t.Amount), Subtitle: "Total amount"},
				{Title: "Pending Review", Value: format.Number(int64(analytics.PendingCount(recs))), Subtitle: "Awaiting approval"},
				{Title: "Receipts", Value: format.Number(int64(t.Count)), Subtitle: "Uploaded"},
			}
		}),
		CategoryPie: views.FromSnapshot(expenses, func(recs []core.ExpenseRecord) []views.PieSlice {
			return views.CategoryPie(analytics.AggregateByCategory(recs))
		}),
		MonthlyTrend: views.FromSnapshot(expenses, func(recs []core.ExpenseRecord) []views.LinePoint {
			return views.AmountLine(analytics.BuildTrendSeries(recs, analytics.MonthKey,
				analytics.TrendOptions{Template: analytics.MonthTemplate}))
		}),
		Expenses: views.FromSnapshot(expenses, func(recs []core.ExpenseRecord) []views.ExpenseRow {
			return views.ExpenseRows(recs, 0)
		}),
	}
}

// Expense categories: server-side buckets, shown largest first.

type ExpenseCategoriesView struct {
	Page  string                              `json:"page"`
	Cards views.Section[[]views.CategoryCard] `json:"cards"`
	Bars  views.Section[[]views.Bar]          `json:"bars"`
}

type expenseCategories struct {
	base
	src        Source
	byCategory *fetch.Slot[map[string]api.CategoryBucket]
}

func newExpenseCategories(src Source, opts Options, logger *log.Logger) *expenseCategories {
	return &expenseCategories{
		base:       newBase(ExpenseCategoriesPage, opts, logger),
		src:        src,
		byCategory: fetch.NewSlot[map[string]api.CategoryBucket](),
	}
}

func (p *expenseCategories) Topics() []events.Kind { return []events.Kind{events.ExpenseUploaded} }

func (p *expenseCategories) Refresh(ctx context.Context) error {
	return p.independent(ctx, fetch.Bind(p.byCategory, "expenses_by_category", p.src.ExpensesByCategory))
}

// bucketAggregates converts server buckets to aggregates sorted by amount.
func bucketAggregates(buckets map[string]api.CategoryBucket) []core.CategoryAggregate {
	aggs := make([]core.CategoryAggregate, 0, len(buckets))
	var grand float64
	for name, b := range buckets {
		aggs = append(aggs, core.CategoryAggregate{Category: name, Amount: b.Total, Count: b.Count})
		grand += b.Total
	}
	for i := range aggs {
		aggs[i].Percentage = analytics.Percent(aggs[i].Amount, grand)
	}
	analytics.SortAlphabetical(aggs)
	analytics.SortByAmountDesc(aggs)
	return aggs
}

func (p *expenseCategories) View() any {
	snap := p.byCategory.Snapshot()
	return ExpenseCategoriesView{
		Page: p.name,
		Cards: views.FromSnapshot(snap, func(b map[string]api.CategoryBucket) []views.CategoryCard {
			return views.CategoryCards(bucketAggregates(b))
		}),
		Bars: views.FromSnapshot(snap, func(b map[string]api.CategoryBucket) []views.Bar {
			return views.CategoryBars(bucketAggregates(b))
		}),
	}
}

// Settings: the role's settings document.

type SettingsView struct {
	Page     string                       `json:"page"`
	Role     string                       `json:"role"`
	Settings views.Section[core.Settings] `json:"settings"`
}

type settingsPage struct {
	base
	src      Source
	settings *fetch.Slot[core.Settings]
}

func newSettings(src Source, opts Options, logger *log.Logger) *settingsPage {
	return &settingsPage{
		base:     newBase(SettingsPage, opts, logger),
		src:      src,
		settings: fetch.NewSlot[core.Settings](),
	}
}

func (p *settingsPage) Topics() []events.Kind { return []events.Kind{events.SettingsUpdated} }

func (p *settingsPage) Refresh(ctx context.Context) error {
	return p.independent(ctx, fetch.Bind(p.settings, "settings", func(ctx context.Context) (core.Settings, error) {
		return p.src.GetSettings(ctx, p.opts.Role)
	}))
}

func (p *settingsPage) View() any {
	return SettingsView{
		Page:     p.name,
		Role:     p.opts.Role,
		Settings: views.FromSnapshot(p.settings.Snapshot(), func(s core.Settings) core.Settings { return s }),
	}
}
