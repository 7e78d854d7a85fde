package analytics

import (
	"math"
	"sort"
	"time"

	"spendsight/internal/core"
)

// Measure selects what a trend bucket accumulates.
type Measure int

const (
	MeasureAmount Measure = iota
	MeasureCount
)

// PeriodKeyFunc maps a timestamp to its bucket label.
type PeriodKeyFunc func(time.Time) string

// TrendOptions controls bucket ordering and accumulation. With a Template the
// output has exactly one point per template label, zero-filled, and keys not
// in the template are dropped. Without one, buckets are ordered by the
// earliest timestamp that fell into them.
type TrendOptions struct {
	Template []string
	Measure  Measure
}

// MonthTemplate is the fixed Jan..Dec period set.
var MonthTemplate = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// MonthKey buckets by short month name, ignoring the year.
func MonthKey(t time.Time) string {
	return MonthTemplate[t.Month()-1]
}

// YearMonthKey buckets by "2006-01".
func YearMonthKey(t time.Time) string {
	return t.Format("2006-01")
}

type sample struct {
	at    time.Time
	value float64
}

// BuildTrendSeries buckets expenses by upload time. Records with missing or
// malformed timestamps are excluded.
func BuildTrendSeries(records []core.ExpenseRecord, key PeriodKeyFunc, opts TrendOptions) []core.TrendPoint {
	samples := make([]sample, 0, len(records))
	for _, r := range records {
		at, ok := r.UploadTime()
		if !ok {
			continue
		}
		samples = append(samples, sample{at: at, value: sanitize(r.Total)})
	}
	return bucket(samples, key, opts)
}

// BuildAnomalyTrend buckets anomalies by detection time. MeasureAmount sums
// the flagged amounts, MeasureCount counts detections.
func BuildAnomalyTrend(anomalies []core.AnomalyRecord, key PeriodKeyFunc, opts TrendOptions) []core.TrendPoint {
	samples := make([]sample, 0, len(anomalies))
	for _, a := range anomalies {
		at, ok := a.DetectionTime()
		if !ok {
			continue
		}
		samples = append(samples, sample{at: at, value: sanitize(a.Amount)})
	}
	return bucket(samples, key, opts)
}

func bucket(samples []sample, key PeriodKeyFunc, opts TrendOptions) []core.TrendPoint {
	sums := make(map[string]float64)
	first := make(map[string]time.Time)
	for _, s := range samples {
		k := key(s.at)
		if opts.Measure == MeasureCount {
			sums[k]++
		} else {
			sums[k] += s.value
		}
		if f, ok := first[k]; !ok || s.at.Before(f) {
			first[k] = s.at
		}
	}

	if opts.Template != nil {
		out := make([]core.TrendPoint, len(opts.Template))
		for i, label := range opts.Template {
			out[i] = core.TrendPoint{Label: label, Value: sums[label]}
		}
		return out
	}

	labels := make([]string, 0, len(sums))
	for k := range sums {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool {
		fi, fj := first[labels[i]], first[labels[j]]
		if fi.Equal(fj) {
			return labels[i] < labels[j]
		}
		return fi.Before(fj)
	})
	out := make([]core.TrendPoint, len(labels))
	for i, label := range labels {
		out[i] = core.TrendPoint{Label: label, Value: sums[label]}
	}
	return out
}

// MonthOverMonth returns the percentage change between the last two points,
// or 0 when there are fewer than two points or the previous value is 0.
func MonthOverMonth(points []core.TrendPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	prev, last := points[len(points)-2].Value, points[len(points)-1].Value
	if prev == 0 {
		return 0
	}
	change := (last - prev) / prev * 100
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return 0
	}
	return change
}
