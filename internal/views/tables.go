package views

import (
	"strings"

	"spendsight/internal/analytics"
	"spendsight/internal/core"
	"spendsight/internal/format"
)

// ExpenseRow is one line of an expense table.
type ExpenseRow struct {
	ID       int64   `json:"id"`
	Date     string  `json:"date"`
	File     string  `json:"file"`
	Vendor   string  `json:"vendor"`
	Category string  `json:"category"`
	Amount   string  `json:"amount"`
	Total    float64 `json:"total"`
	Status   string  `json:"status"`
}

// AnomalyRow is one line of a flagged-transactions table.
type AnomalyRow struct {
	ID            string  `json:"id"`
	ExpenseID     int64   `json:"expenseId"`
	Date          string  `json:"date"`
	Vendor        string  `json:"vendor"`
	Category      string  `json:"category"`
	Amount        string  `json:"amount"`
	Type          string  `json:"type"`
	Severity      string  `json:"severity"`
	SeverityColor string  `json:"severityColor"`
	Confidence    string  `json:"confidence"`
	RawConfidence float64 `json:"rawConfidence"`
}

// DisplayStatus maps API statuses onto the labels shown in tables. Only
// processed expenses are relabelled.
func DisplayStatus(status string) string {
	if status == "" || status == core.StatusProcessed {
		return "Approved"
	}
	return status
}

// ExpenseRows renders expenses in their given order. A positive limit keeps
// only the first limit rows.
func ExpenseRows(records []core.ExpenseRecord, limit int) []ExpenseRow {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]ExpenseRow, 0, len(records))
	for _, r := range records {
		date := r.UploadedAt
		if t, ok := r.UploadTime(); ok {
			date = format.Date(t)
		}
		out = append(out, ExpenseRow{
			ID:       r.ID,
			Date:     date,
			File:     r.File,
			Vendor:   r.VendorOrDefault(),
			Category: r.CategoryOrDefault(),
			Amount:   format.Currency(r.Total),
			Total:    r.Total,
			Status:   DisplayStatus(r.Status),
		})
	}
	return out
}

// AnomalyRows renders anomalies in their given order.
func AnomalyRows(anomalies []core.AnomalyRecord) []AnomalyRow {
	out := make([]AnomalyRow, 0, len(anomalies))
	for _, a := range anomalies {
		date := a.DetectedAt
		if t, ok := a.DetectionTime(); ok {
			date = format.DateTime(t)
		}
		severity := strings.TrimSpace(a.Severity)
		if sev, ok := core.ParseSeverity(severity); ok {
			severity = sev.String()
		}
		vendor := a.Vendor
		if vendor == "" {
			vendor = "Unknown"
		}
		category := a.Category
		if strings.TrimSpace(category) == "" {
			category = core.UncategorizedLabel
		}
		out = append(out, AnomalyRow{
			ID:            string(a.ID),
			ExpenseID:     a.ExpenseID,
			Date:          date,
			Vendor:        vendor,
			Category:      category,
			Amount:        format.Currency(a.Amount),
			Type:          a.TypeOrDefault(),
			Severity:      severity,
			SeverityColor: analytics.SeverityColor(severity),
			Confidence:    format.Confidence(a.Confidence),
			RawConfidence: a.Confidence,
		})
	}
	return out
}
