package analytics

import (
	"math"
	"testing"

	"spendsight/internal/core"
)

func expense(cat string, total float64) core.ExpenseRecord {
	return core.ExpenseRecord{Category: cat, Total: total}
}

func TestAggregateByCategory_Scenario(t *testing.T) {
	got := AggregateByCategory([]core.ExpenseRecord{
		expense("Travel", 100),
		expense("Travel", 50),
		expense("Food", 50),
	})
	want := []core.CategoryAggregate{
		{Category: "Travel", Amount: 150, Count: 2, Percentage: 75},
		{Category: "Food", Amount: 50, Count: 1, Percentage: 25},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d aggregates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("aggregate %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAggregateByCategory_Properties(t *testing.T) {
	cases := []struct {
		name    string
		records []core.ExpenseRecord
	}{
		{"empty", nil},
		{"single", []core.ExpenseRecord{expense("Food", 12.34)}},
		{"zero totals", []core.ExpenseRecord{expense("Food", 0), expense("Travel", 0)}},
		{"thirds", []core.ExpenseRecord{expense("A", 1), expense("B", 1), expense("C", 1)}},
		{"uncategorized", []core.ExpenseRecord{expense("", 10), expense("  ", 5), expense("Food", 5)}},
		{"fractions", []core.ExpenseRecord{expense("A", 0.1), expense("B", 0.2), expense("A", 0.3), expense("C", 99.99)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			aggs := AggregateByCategory(tc.records)

			var want float64
			for _, r := range tc.records {
				want += r.Total
			}
			if got := GrandTotal(aggs); math.Abs(got-want) > 1e-9 {
				t.Fatalf("sum of aggregates %v != sum of records %v", got, want)
			}
			for _, a := range aggs {
				if a.Percentage < 0 || a.Percentage > 100 {
					t.Fatalf("percentage out of range: %+v", a)
				}
				if want == 0 && a.Percentage != 0 {
					t.Fatalf("zero grand total must give 0%%, got %+v", a)
				}
			}
		})
	}
}

func TestAggregateByCategory_SentinelAndOrder(t *testing.T) {
	aggs := AggregateByCategory([]core.ExpenseRecord{
		expense("Lodging", 10),
		expense("", 10),
		expense("Food", 10),
		expense("Lodging", 10),
	})
	order := []string{"Lodging", core.UncategorizedLabel, "Food"}
	for i, name := range order {
		if aggs[i].Category != name {
			t.Fatalf("position %d = %q, want %q", i, aggs[i].Category, name)
		}
	}
}

func TestAggregateByCategory_RoundingNotRedistributed(t *testing.T) {
	aggs := AggregateByCategory([]core.ExpenseRecord{expense("A", 1), expense("B", 1), expense("C", 1)})
	sum := 0
	for _, a := range aggs {
		if a.Percentage != 33 {
			t.Fatalf("expected 33%%, got %+v", a)
		}
		sum += a.Percentage
	}
	if sum != 99 {
		t.Fatalf("expected per-item rounding to sum to 99, got %d", sum)
	}
}

func TestSorts(t *testing.T) {
	aggs := []core.CategoryAggregate{
		{Category: "Food", Amount: 10},
		{Category: "Travel", Amount: 30},
		{Category: "Bills", Amount: 10},
	}
	SortByAmountDesc(aggs)
	if aggs[0].Category != "Travel" || aggs[1].Category != "Food" || aggs[2].Category != "Bills" {
		t.Fatalf("unexpected desc order: %+v", aggs)
	}
	SortAlphabetical(aggs)
	if aggs[0].Category != "Bills" || aggs[2].Category != "Travel" {
		t.Fatalf("unexpected alpha order: %+v", aggs)
	}
}

func TestComputeTotalsAndStatus(t *testing.T) {
	records := []core.ExpenseRecord{
		{Total: 100, Status: core.StatusProcessed},
		{Total: 50, Status: core.StatusNeedsReview},
		{Total: 30, Status: core.StatusFlagged},
		{Total: 20},
	}
	tot := ComputeTotals(records)
	if tot.Count != 4 || tot.Amount != 200 || tot.Average != 50 {
		t.Fatalf("unexpected totals: %+v", tot)
	}
	if ComputeTotals(nil) != (core.Totals{}) {
		t.Fatalf("empty input should give zero totals")
	}
	if PendingCount(records) != 1 || FlaggedCount(records) != 1 {
		t.Fatalf("unexpected status counts: %v", CountByStatus(records))
	}
	if CountByStatus(records)[core.StatusProcessed] != 2 {
		t.Fatalf("blank status should count as processed")
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		part, whole float64
		want        int
	}{
		{1, 0, 0},
		{1, -5, 0},
		{1, math.NaN(), 0},
		{1, 3, 33},
		{2, 3, 67},
		{5, 4, 100},
		{-1, 4, 0},
	}
	for _, tc := range cases {
		if got := Percent(tc.part, tc.whole); got != tc.want {
			t.Errorf("Percent(%v,%v) = %d, want %d", tc.part, tc.whole, got, tc.want)
		}
	}
}
