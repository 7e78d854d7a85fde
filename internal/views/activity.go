package views

import (
	"sort"

	"spendsight/internal/analytics"
	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/format"
)

// ActivityRow is one audit-trail entry.
type ActivityRow struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	User       string `json:"user"`
	Action     string `json:"action"`
	ActionType string `json:"actionType"`
	Details    string `json:"details"`
	IPAddress  string `json:"ipAddress,omitempty"`
	Color      string `json:"color"`
}

// ActivityRows renders activities in their given order. A positive limit
// keeps only the first limit rows.
func ActivityRows(records []core.ActivityRecord, limit int) []ActivityRow {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]ActivityRow, 0, len(records))
	for _, r := range records {
		date := r.Timestamp
		if t, ok := r.Time(); ok {
			date = format.DateTime(t)
		}
		out = append(out, ActivityRow{
			ID:         r.ID,
			Date:       date,
			User:       r.User,
			Action:     r.Action,
			ActionType: r.Kind(),
			Details:    r.Details,
			IPAddress:  r.IPAddress,
			Color:      analytics.ActionColor(r.ActionType),
		})
	}
	return out
}

// ActivityCards are the audit-trail headline numbers.
func ActivityCards(s api.ActivityStats) []StatCard {
	return []StatCard{
		{Title: "Total Activities", Value: format.Number(int64(s.TotalActivities)), Subtitle: "All recorded actions"},
		{Title: "Approvals", Value: format.Number(int64(s.Approvals)), Subtitle: "Expenses approved"},
		{Title: "Flags/Rejections", Value: format.Number(int64(s.FlagsRejections)), Subtitle: "Items flagged or rejected"},
		{Title: "Reports Generated", Value: format.Number(int64(s.ReportsGenerated)), Subtitle: "Compliance reports"},
	}
}

// ActionBars renders per-type counts, largest first and ties by name.
func ActionBars(counts map[string]int) []Bar {
	out := make([]Bar, 0, len(counts))
	for kind, n := range counts {
		out = append(out, Bar{
			Label:   kind,
			Value:   float64(n),
			Display: format.Number(int64(n)),
			Color:   analytics.ActionColor(kind),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}
