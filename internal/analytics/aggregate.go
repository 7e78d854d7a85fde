// Package analytics derives category breakdowns, trend series and anomaly
// summaries from raw expense and anomaly records. Every function is pure and
// total: empty or partially malformed input degrades to empty or zero-filled
// output.
package analytics

import (
	"math"
	"sort"

	"spendsight/internal/core"
)

// AggregateByCategory sums expense totals per category, preserving the order
// in which categories are first seen. Missing categories are grouped under
// core.UncategorizedLabel. Percentages are rounded per item and are not
// redistributed, so they may not sum to exactly 100.
func AggregateByCategory(records []core.ExpenseRecord) []core.CategoryAggregate {
	if len(records) == 0 {
		return []core.CategoryAggregate{}
	}

	index := make(map[string]int)
	out := make([]core.CategoryAggregate, 0)
	var grand float64

	for _, r := range records {
		amount := sanitize(r.Total)
		cat := r.CategoryOrDefault()
		i, ok := index[cat]
		if !ok {
			i = len(out)
			index[cat] = i
			out = append(out, core.CategoryAggregate{Category: cat})
		}
		out[i].Amount += amount
		out[i].Count++
		grand += amount
	}

	for i := range out {
		out[i].Percentage = Percent(out[i].Amount, grand)
	}
	return out
}

// Percent returns round(part/whole*100) clamped to [0,100], or 0 when whole
// is not positive.
func Percent(part, whole float64) int {
	if whole <= 0 || math.IsNaN(whole) || math.IsInf(whole, 0) {
		return 0
	}
	p := math.Round(part / whole * 100)
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}

// SortByAmountDesc orders aggregates by amount, largest first. Ties keep
// their first-seen order.
func SortByAmountDesc(aggs []core.CategoryAggregate) {
	sort.SliceStable(aggs, func(i, j int) bool {
		return aggs[i].Amount > aggs[j].Amount
	})
}

// SortAlphabetical orders aggregates by category name.
func SortAlphabetical(aggs []core.CategoryAggregate) {
	sort.SliceStable(aggs, func(i, j int) bool {
		return aggs[i].Category < aggs[j].Category
	})
}

// GrandTotal sums the aggregate amounts.
func GrandTotal(aggs []core.CategoryAggregate) float64 {
	var sum float64
	for _, a := range aggs {
		sum += a.Amount
	}
	return sum
}

// ComputeTotals returns count, sum and average transaction amount.
func ComputeTotals(records []core.ExpenseRecord) core.Totals {
	var t core.Totals
	for _, r := range records {
		t.Count++
		t.Amount += sanitize(r.Total)
	}
	if t.Count > 0 {
		t.Average = t.Amount / float64(t.Count)
	}
	return t
}

// CountByStatus counts expenses per status string. Blank statuses count
// under core.StatusProcessed, the API's default.
func CountByStatus(records []core.ExpenseRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		s := r.Status
		if s == "" {
			s = core.StatusProcessed
		}
		counts[s]++
	}
	return counts
}

// PendingCount returns the number of expenses awaiting review.
func PendingCount(records []core.ExpenseRecord) int {
	return CountByStatus(records)[core.StatusNeedsReview]
}

// FlaggedCount returns the number of flagged expenses.
func FlaggedCount(records []core.ExpenseRecord) int {
	return CountByStatus(records)[core.StatusFlagged]
}

// sanitize maps non-finite amounts to zero so one bad record cannot poison a sum.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
