package views

import (
	"sort"

	"spendsight/internal/analytics"
	"spendsight/internal/core"
	"spendsight/internal/format"
)

type (
	// PieSlice is one wedge of a category or type distribution.
	PieSlice struct {
		Name       string  `json:"name"`
		Value      float64 `json:"value"`
		Percentage int     `json:"percentage"`
		Color      string  `json:"color"`
	}

	// LinePoint is one point of a line chart.
	LinePoint struct {
		Label   string  `json:"label"`
		Value   float64 `json:"value"`
		Display string  `json:"display"`
	}

	// Bar is one bar of a bar chart.
	Bar struct {
		Label   string  `json:"label"`
		Value   float64 `json:"value"`
		Display string  `json:"display"`
		Color   string  `json:"color"`
	}

	// StatCard is a headline number.
	StatCard struct {
		Title    string `json:"title"`
		Value    string `json:"value"`
		Subtitle string `json:"subtitle,omitempty"`
	}

	// CategoryCard is one tile of the expense categories page.
	CategoryCard struct {
		Name       string `json:"name"`
		Total      string `json:"total"`
		Count      int    `json:"count"`
		Percentage int    `json:"percentage"`
		Color      string `json:"color"`
	}

	// SeverityBar is one bucket of the severity breakdown.
	SeverityBar struct {
		Severity string  `json:"severity"`
		Count    int     `json:"count"`
		Share    string  `json:"share"`
		Color    string  `json:"color"`
		Value    float64 `json:"value"`
	}
)

// CategoryPie maps aggregates onto pie slices in their given order.
func CategoryPie(aggs []core.CategoryAggregate) []PieSlice {
	out := make([]PieSlice, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, PieSlice{
			Name:       a.Category,
			Value:      a.Amount,
			Percentage: a.Percentage,
			Color:      analytics.CategoryColor(a.Category),
		})
	}
	return out
}

// ServerCategoryPie builds slices from server-computed totals and
// percentages. Percentages are truncated to whole numbers. Slices are
// ordered by amount, largest first, then by name.
func ServerCategoryPie(totals, percentages map[string]float64) []PieSlice {
	out := make([]PieSlice, 0, len(totals))
	for name, amount := range totals {
		out = append(out, PieSlice{
			Name:       name,
			Value:      amount,
			Percentage: int(percentages[name]),
			Color:      analytics.CategoryColor(name),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TypePie maps anomaly type counts onto pie slices.
func TypePie(types []core.TypeCount) []PieSlice {
	total := 0
	for _, t := range types {
		total += t.Count
	}
	out := make([]PieSlice, 0, len(types))
	for _, t := range types {
		out = append(out, PieSlice{
			Name:       t.Type,
			Value:      float64(t.Count),
			Percentage: analytics.Percent(float64(t.Count), float64(total)),
			Color:      t.Color,
		})
	}
	return out
}

// AmountLine maps a trend series of amounts onto line points.
func AmountLine(points []core.TrendPoint) []LinePoint {
	out := make([]LinePoint, 0, len(points))
	for _, p := range points {
		out = append(out, LinePoint{Label: p.Label, Value: p.Value, Display: format.CompactCurrency(p.Value)})
	}
	return out
}

// CountLine maps a trend series of counts onto line points.
func CountLine(points []core.TrendPoint) []LinePoint {
	out := make([]LinePoint, 0, len(points))
	for _, p := range points {
		out = append(out, LinePoint{Label: p.Label, Value: p.Value, Display: formatCount(p.Value)})
	}
	return out
}

// CategoryBars maps aggregates onto bars in their given order.
func CategoryBars(aggs []core.CategoryAggregate) []Bar {
	out := make([]Bar, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, Bar{
			Label:   a.Category,
			Value:   a.Amount,
			Display: format.Currency(a.Amount),
			Color:   analytics.CategoryColor(a.Category),
		})
	}
	return out
}

// CategoryCards maps aggregates onto the category tiles.
func CategoryCards(aggs []core.CategoryAggregate) []CategoryCard {
	out := make([]CategoryCard, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, CategoryCard{
			Name:       a.Category,
			Total:      format.Currency(a.Amount),
			Count:      a.Count,
			Percentage: a.Percentage,
			Color:      analytics.CategoryColor(a.Category),
		})
	}
	return out
}

// SeverityBars renders the four buckets, most severe first. Shares are taken
// over the full anomaly count.
func SeverityBars(s core.SeveritySummary) []SeverityBar {
	out := make([]SeverityBar, 0, len(core.Severities))
	for _, sev := range core.Severities {
		n := analytics.Count(s, sev)
		share := analytics.Share(s, sev)
		out = append(out, SeverityBar{
			Severity: sev.String(),
			Count:    n,
			Share:    format.Percentage(share),
			Value:    share,
			Color:    analytics.SeverityColor(sev.String()),
		})
	}
	return out
}

func formatCount(v float64) string {
	return format.Number(int64(v))
}
