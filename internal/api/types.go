package api

import "spendsight/internal/core"

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type expensesResponse struct {
	Expenses []core.ExpenseRecord `json:"expenses"`
	Count    int                  `json:"count"`
}

// ExpenseStats is the server-side summary from GET /expenses/stats.
type ExpenseStats struct {
	TotalExpenses       int                `json:"total_expenses"`
	TotalAmount         float64            `json:"total_amount"`
	ByCategory          map[string]float64 `json:"by_category"`
	CategoryPercentages map[string]float64 `json:"category_percentages"`
}

// CategoryBucket is one entry of GET /expenses/by-category.
type CategoryBucket struct {
	Total    float64              `json:"total"`
	Count    int                  `json:"count"`
	Expenses []core.ExpenseRecord `json:"expenses"`
}

type byCategoryResponse struct {
	ByCategory map[string]CategoryBucket `json:"by_category"`
}

type anomaliesResponse struct {
	Anomalies []core.AnomalyRecord `json:"anomalies"`
}

// AnomalyStats is the server-side anomaly summary from GET /anomalies/stats.
type AnomalyStats struct {
	FlaggedCount      int            `json:"flagged_count"`
	NormalCount       int            `json:"normal_count"`
	FlaggedPercentage float64        `json:"flagged_percentage"`
	BySeverity        map[string]int `json:"by_severity,omitempty"`
}

type activitiesResponse struct {
	Activities []core.ActivityRecord `json:"activities"`
}

// ActivityStats is the audit-trail summary from GET /activity-logs/stats.
type ActivityStats struct {
	TotalActivities  int            `json:"totalActivities"`
	ActionCounts     map[string]int `json:"actionCounts"`
	Approvals        int            `json:"approvals"`
	FlagsRejections  int            `json:"flagsRejections"`
	ReportsGenerated int            `json:"reportsGenerated"`
}

type settingsResponse struct {
	Settings core.Settings `json:"settings"`
}

// LogoResult is returned by a logo upload. LogoPath is absolute.
type LogoResult struct {
	LogoPath string        `json:"logoPath"`
	Settings core.Settings `json:"settings"`
}

// Classification is the category guess for an uploaded receipt.
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entities are the fields extracted from an uploaded receipt.
type Entities struct {
	Vendor string  `json:"vendor"`
	Date   string  `json:"date"`
	Total  float64 `json:"total"`
}

// UploadResult is the response of POST /ocr.
type UploadResult struct {
	Text           string         `json:"text"`
	Classification Classification `json:"classification"`
	Entities       Entities       `json:"entities"`
	ExpenseID      int64          `json:"expenseId,omitempty"`
}
