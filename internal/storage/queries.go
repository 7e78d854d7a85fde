package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const expenseColumns = `id, filename, uploaded_at, category, vendor, amount, text_preview, status, anomaly_status, anomaly_reason`

func scanExpense(row interface{ Scan(...any) error }) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Filename, &e.UploadedAt, &e.Category, &e.Vendor, &e.Amount,
		&e.TextPreview, &e.Status, &e.AnomalyStatus, &e.AnomalyReason)
	return e, err
}

const listExpenses = `SELECT ` + expenseColumns + ` FROM expenses ORDER BY id`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const createExpense = `INSERT INTO expenses (filename, uploaded_at, category, vendor, amount, text_preview, status, anomaly_status, anomaly_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
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

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.Filename, arg.UploadedAt, arg.Category, arg.Vendor, arg.Amount,
		arg.TextPreview, arg.Status, arg.AnomalyStatus, arg.AnomalyReason)
	return scanExpense(row)
}

const countExpensesByAnomalyStatus = `SELECT anomaly_status, COUNT(*) FROM expenses GROUP BY anomaly_status`

func (q *Queries) CountExpensesByAnomalyStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := q.db.QueryContext(ctx, countExpensesByAnomalyStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.AnomalyStatus, &c.Count); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const anomalyColumns = `id, expense_id, detected_at, vendor, category, amount, anomaly_type, severity, confidence`

const listAnomalies = `SELECT ` + anomalyColumns + ` FROM anomalies ORDER BY detected_at DESC, id DESC`

func (q *Queries) ListAnomalies(ctx context.Context) ([]Anomaly, error) {
	return q.queryAnomalies(ctx, listAnomalies)
}

const listRecentAnomalies = `SELECT ` + anomalyColumns + ` FROM anomalies ORDER BY detected_at DESC, id DESC LIMIT ?`

func (q *Queries) ListRecentAnomalies(ctx context.Context, limit int64) ([]Anomaly, error) {
	return q.queryAnomalies(ctx, listRecentAnomalies, limit)
}

func (q *Queries) queryAnomalies(ctx context.Context, query string, args ...any) ([]Anomaly, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Anomaly
	for rows.Next() {
		var a Anomaly
		if err := rows.Scan(&a.ID, &a.ExpenseID, &a.DetectedAt, &a.Vendor, &a.Category,
			&a.Amount, &a.AnomalyType, &a.Severity, &a.Confidence); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const settingsColumns = `id, role, user_id, display_name, email, org_name, industry, logo_path, contact_info, help_content,
ai_enabled, response_tone, accuracy_threshold, notify_email, notify_push, expense_alerts, weekly_reports, theme,
created_at, updated_at`

const getUserSettings = `SELECT ` + settingsColumns + ` FROM user_settings WHERE role = ?`

func (q *Queries) GetUserSettings(ctx context.Context, role string) (UserSetting, error) {
	var s UserSetting
	err := q.db.QueryRowContext(ctx, getUserSettings, role).Scan(
		&s.ID, &s.Role, &s.UserID, &s.DisplayName, &s.Email, &s.OrgName, &s.Industry,
		&s.LogoPath, &s.ContactInfo, &s.HelpContent,
		&s.AIEnabled, &s.ResponseTone, &s.AccuracyThreshold,
		&s.NotifyEmail, &s.NotifyPush, &s.ExpenseAlerts, &s.WeeklyReports, &s.Theme,
		&s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const upsertUserSettings = `INSERT INTO user_settings (role, user_id, display_name, email, org_name, industry, logo_path,
contact_info, help_content, ai_enabled, response_tone, accuracy_threshold, notify_email, notify_push,
expense_alerts, weekly_reports, theme, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (role) DO UPDATE SET
    user_id = excluded.user_id,
    display_name = excluded.display_name,
    email = excluded.email,
    org_name = excluded.org_name,
    industry = excluded.industry,
    logo_path = excluded.logo_path,
    contact_info = excluded.contact_info,
    help_content = excluded.help_content,
    ai_enabled = excluded.ai_enabled,
    response_tone = excluded.response_tone,
    accuracy_threshold = excluded.accuracy_threshold,
    notify_email = excluded.notify_email,
    notify_push = excluded.notify_push,
    expense_alerts = excluded.expense_alerts,
    weekly_reports = excluded.weekly_reports,
    theme = excluded.theme,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertUserSettings(ctx context.Context, s UserSetting) error {
	_, err := q.db.ExecContext(ctx, upsertUserSettings,
		s.Role, s.UserID, s.DisplayName, s.Email, s.OrgName, s.Industry, s.LogoPath,
		s.ContactInfo, s.HelpContent, s.AIEnabled, s.ResponseTone, s.AccuracyThreshold,
		s.NotifyEmail, s.NotifyPush, s.ExpenseAlerts, s.WeeklyReports, s.Theme,
		s.CreatedAt, s.UpdatedAt)
	return err
}

const activityColumns = `id, user_name, action, action_type, details, ip_address, created_at`

func scanActivity(row interface{ Scan(...any) error }) (ActivityLog, error) {
	var a ActivityLog
	err := row.Scan(&a.ID, &a.UserName, &a.Action, &a.ActionType, &a.Details, &a.IPAddress, &a.CreatedAt)
	return a, err
}

const listRecentActivities = `SELECT ` + activityColumns + ` FROM activity_logs ORDER BY created_at DESC, id DESC LIMIT ?`

func (q *Queries) ListRecentActivities(ctx context.Context, limit int64) ([]ActivityLog, error) {
	rows, err := q.db.QueryContext(ctx, listRecentActivities, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActivityLog
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const countActivitiesByType = `SELECT action_type, COUNT(*) FROM activity_logs GROUP BY action_type ORDER BY action_type`

func (q *Queries) CountActivitiesByType(ctx context.Context) ([]ActionCount, error) {
	rows, err := q.db.QueryContext(ctx, countActivitiesByType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActionCount
	for rows.Next() {
		var c ActionCount
		if err := rows.Scan(&c.ActionType, &c.Count); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const createActivity = `INSERT INTO activity_logs (user_name, action, action_type, details, ip_address, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + activityColumns

type CreateActivityParams struct {
	UserName   string
	Action     string
	ActionType string
	Details    string
	IPAddress  string
	CreatedAt  string
}

func (q *Queries) CreateActivity(ctx context.Context, arg CreateActivityParams) (ActivityLog, error) {
	row := q.db.QueryRowContext(ctx, createActivity,
		arg.UserName, arg.Action, arg.ActionType, arg.Details, arg.IPAddress, arg.CreatedAt)
	return scanActivity(row)
}
