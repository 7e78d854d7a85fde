package analytics

import (
	"math"

	"spendsight/internal/core"
)

// SummarizeSeverity buckets anomalies by severity. Unrecognized or missing
// severities are left out of the buckets but still counted in Total.
func SummarizeSeverity(anomalies []core.AnomalyRecord) core.SeveritySummary {
	var s core.SeveritySummary
	for _, a := range anomalies {
		s.Total++
		sev, ok := core.ParseSeverity(a.Severity)
		if !ok {
			continue
		}
		switch sev {
		case core.Critical:
			s.Critical++
		case core.High:
			s.High++
		case core.Medium:
			s.Medium++
		case core.Low:
			s.Low++
		}
	}
	return s
}

// Bucketed is the number of anomalies with a recognized severity.
func Bucketed(s core.SeveritySummary) int {
	return s.Critical + s.High + s.Medium + s.Low
}

// Count returns the bucket size for sev.
func Count(s core.SeveritySummary, sev core.Severity) int {
	switch sev {
	case core.Critical:
		return s.Critical
	case core.High:
		return s.High
	case core.Medium:
		return s.Medium
	case core.Low:
		return s.Low
	}
	return 0
}

// Share is the bucket's percentage of all anomalies, unrecognized included.
func Share(s core.SeveritySummary, sev core.Severity) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(Count(s, sev)) / float64(s.Total) * 100
}

// SummarizeByType groups anomalies by type in first-seen order. Blank types
// are grouped under core.OtherAnomalyType.
func SummarizeByType(anomalies []core.AnomalyRecord) []core.TypeCount {
	index := make(map[string]int)
	out := make([]core.TypeCount, 0)
	for _, a := range anomalies {
		t := a.TypeOrDefault()
		i, ok := index[t]
		if !ok {
			i = len(out)
			index[t] = i
			out = append(out, core.TypeCount{Type: t, Color: AnomalyTypeColor(t)})
		}
		out[i].Count++
	}
	return out
}

// ComputeIntegrityScore returns 100 - flagged/total*100 clamped to [0,100].
// With no transactions there is nothing to flag, so the score is 100.
func ComputeIntegrityScore(flaggedCount, totalCount int) float64 {
	if totalCount <= 0 {
		return 100
	}
	score := 100 - float64(flaggedCount)/float64(totalCount)*100
	return math.Max(0, math.Min(100, score))
}

// IntegrityScore scores a severity summary against the number of
// transactions it was drawn from.
func IntegrityScore(s core.SeveritySummary, totalTransactions int) float64 {
	return ComputeIntegrityScore(s.Total, totalTransactions)
}

// AverageConfidence is the mean detection confidence, 0 for no anomalies.
func AverageConfidence(anomalies []core.AnomalyRecord) float64 {
	if len(anomalies) == 0 {
		return 0
	}
	var sum float64
	for _, a := range anomalies {
		sum += sanitize(a.Confidence)
	}
	return sum / float64(len(anomalies))
}

// FlaggedAmount sums the amounts under review.
func FlaggedAmount(anomalies []core.AnomalyRecord) float64 {
	var sum float64
	for _, a := range anomalies {
		sum += sanitize(a.Amount)
	}
	return sum
}
