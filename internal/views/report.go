package views

import (
	"fmt"
	"strings"
	"time"

	"spendsight/internal/analytics"
	"spendsight/internal/core"
	"spendsight/internal/format"
)

// Report is the compliance report built from one consistent pair of
// expense and anomaly snapshots.
type Report struct {
	GeneratedAt    time.Time                `json:"generatedAt"`
	Totals         core.Totals              `json:"totals"`
	FlaggedItems   int                      `json:"flaggedItems"`
	ComplianceRate float64                  `json:"complianceRate"`
	MonthOverMonth float64                  `json:"monthOverMonth"`
	Trend          []core.TrendPoint        `json:"trend"`
	Categories     []core.CategoryAggregate `json:"categories"`
	Severity       core.SeveritySummary     `json:"severity"`
	Types          []core.TypeCount         `json:"types"`
}

// BuildReport derives the report. Categories are ordered by amount, largest
// first; the trend covers the fixed Jan..Dec template.
func BuildReport(expenses []core.ExpenseRecord, anomalies []core.AnomalyRecord, now time.Time) Report {
	categories := analytics.AggregateByCategory(expenses)
	analytics.SortByAmountDesc(categories)
	trend := analytics.BuildTrendSeries(expenses, analytics.MonthKey, analytics.TrendOptions{Template: analytics.MonthTemplate})
	severity := analytics.SummarizeSeverity(anomalies)

	// Month-over-month compares the two most recent calendar months, not
	// the last two template slots.
	recent := analytics.BuildTrendSeries(expenses, analytics.YearMonthKey, analytics.TrendOptions{})

	return Report{
		GeneratedAt:    now.UTC(),
		Totals:         analytics.ComputeTotals(expenses),
		FlaggedItems:   severity.Total,
		ComplianceRate: analytics.IntegrityScore(severity, len(expenses)),
		MonthOverMonth: analytics.MonthOverMonth(recent),
		Trend:          trend,
		Categories:     categories,
		Severity:       severity,
		Types:          analytics.SummarizeByType(anomalies),
	}
}

// Cards returns the report's headline numbers.
func (r Report) Cards() []StatCard {
	return []StatCard{
		{Title: "Total Expenses", Value: format.Currency(r.Totals.Amount), Subtitle: fmt.Sprintf("%s change vs last month", format.Percentage(r.MonthOverMonth))},
		{Title: "Compliance Rate", Value: format.Percentage(r.ComplianceRate), Subtitle: "Transactions without anomalies"},
		{Title: "Avg. per Transaction", Value: format.Currency(r.Totals.Average), Subtitle: fmt.Sprintf("%s transactions", format.Number(int64(r.Totals.Count)))},
		{Title: "Flagged Items", Value: format.Number(int64(r.FlaggedItems)), Subtitle: "Requires review"},
	}
}

// Rows flattens the report into spreadsheet rows.
func (r Report) Rows() [][]any {
	rows := [][]any{
		{"Expense Report", format.DateTime(r.GeneratedAt)},
		{},
		{"Total Expenses", r.Totals.Amount},
		{"Transactions", r.Totals.Count},
		{"Average per Transaction", r.Totals.Average},
		{"Flagged Items", r.FlaggedItems},
		{"Compliance Rate (%)", r.ComplianceRate},
		{},
		{"Category", "Amount", "Count", "Percentage"},
	}
	for _, c := range r.Categories {
		rows = append(rows, []any{c.Category, c.Amount, c.Count, c.Percentage})
	}
	rows = append(rows, []any{}, []any{"Month", "Amount"})
	for _, p := range r.Trend {
		rows = append(rows, []any{p.Label, p.Value})
	}
	rows = append(rows, []any{}, []any{"Severity", "Count"})
	for _, sev := range core.Severities {
		rows = append(rows, []any{sev.String(), analytics.Count(r.Severity, sev)})
	}
	rows = append(rows, []any{"Total", r.Severity.Total})
	return rows
}

// Text renders the report as plain text.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expense Report (%s)\n\n", format.DateTime(r.GeneratedAt))
	for _, c := range r.Cards() {
		fmt.Fprintf(&b, "%-22s %s\n", c.Title+":", c.Value)
	}

	b.WriteString("\nSpending by Category\n")
	if len(r.Categories) == 0 {
		b.WriteString("  (no expenses)\n")
	}
	for _, c := range r.Categories {
		fmt.Fprintf(&b, "  %-20s %14s %4d%%\n", c.Category, format.Currency(c.Amount), c.Percentage)
	}

	b.WriteString("\nMonthly Trend\n")
	for _, p := range r.Trend {
		fmt.Fprintf(&b, "  %-4s %14s\n", p.Label, format.Currency(p.Value))
	}

	b.WriteString("\nAnomalies by Severity\n")
	for _, sev := range core.Severities {
		fmt.Fprintf(&b, "  %-9s %d\n", sev, analytics.Count(r.Severity, sev))
	}
	if other := r.Severity.Total - analytics.Bucketed(r.Severity); other > 0 {
		fmt.Fprintf(&b, "  %-9s %d\n", "Other", other)
	}
	return b.String()
}
