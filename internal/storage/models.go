package storage

import "database/sql"

// Expense is a row of the expenses table.
type Expense struct {
	ID            int64
	Filename      string
	UploadedAt    string
	Category      string
	Vendor        string
	Amount        sql.NullFloat64
	TextPreview   string
	Status        string
	AnomalyStatus string
	AnomalyReason string
}

// Anomaly is a row of the anomalies table.
type Anomaly struct {
	ID          int64
	ExpenseID   sql.NullInt64
	DetectedAt  string
	Vendor      string
	Category    string
	Amount      float64
	AnomalyType string
	Severity    string
	Confidence  float64
}

// UserSetting is a row of the user_settings table.
type UserSetting struct {
	ID                int64
	Role              string
	UserID            string
	DisplayName       string
	Email             string
	OrgName           string
	Industry          string
	LogoPath          sql.NullString
	ContactInfo       sql.NullString
	HelpContent       sql.NullString
	AIEnabled         bool
	ResponseTone      string
	AccuracyThreshold float64
	NotifyEmail       bool
	NotifyPush        bool
	ExpenseAlerts     bool
	WeeklyReports     bool
	Theme             string
	CreatedAt         string
	UpdatedAt         string
}

// StatusCount is one group of CountExpensesByAnomalyStatus.
type StatusCount struct {
	AnomalyStatus string
	Count         int64
}

// ActivityLog is a row of the activity_logs table.
type ActivityLog struct {
	ID         int64
	UserName   string
	Action     string
	ActionType string
	Details    string
	IPAddress  string
	CreatedAt  string
}

// ActionCount is one group of CountActivitiesByType.
type ActionCount struct {
	ActionType string
	Count      int64
}
