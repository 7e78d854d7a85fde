// Package storage persists expenses, anomalies, role settings and the audit
// trail for the reference expense API in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"spendsight/internal/core"
	"spendsight/internal/log"

	_ "modernc.org/sqlite"
)

// Anomaly status values on expense rows.
const (
	AnomalyFlagged = "flagged"
	AnomalyNormal  = "normal"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

// NewSQLiteRepository opens dbPath, applies migrations and seeds mock data
// on first use.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Each connection to :memory: is a separate database, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListExpenses returns every expense in insertion order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.ExpenseRecord, 0, len(rows))
	for _, e := range rows {
		out = append(out, expenseRecord(e))
	}
	return out, nil
}

// GetExpense returns one expense, or nil when it does not exist.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*core.ExpenseRecord, error) {
	e, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	rec := expenseRecord(e)
	return &rec, nil
}

// NewExpense is the input for CreateExpense. A nil Amount is stored as NULL.
type NewExpense struct {
	Filename    string
	Category    string
	Vendor      string
	Amount      *float64
	TextPreview string
	Status      string
}

// CreateExpense stores an uploaded receipt.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, in NewExpense) (core.ExpenseRecord, error) {
	status := in.Status
	if status == "" {
		status = core.StatusProcessed
	}
	var amount sql.NullFloat64
	if in.Amount != nil {
		amount = sql.NullFloat64{Float64: *in.Amount, Valid: true}
	}
	e, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		Filename:      in.Filename,
		UploadedAt:    r.now().UTC().Format(time.RFC3339),
		Category:      in.Category,
		Vendor:        in.Vendor,
		Amount:        amount,
		TextPreview:   in.TextPreview,
		Status:        status,
		AnomalyStatus: AnomalyNormal,
	})
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("create expense: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"file", e.Filename,
		"status", e.Status)
	return expenseRecord(e), nil
}

// ListAnomalies returns every anomaly, newest first.
func (r *SQLiteRepository) ListAnomalies(ctx context.Context) ([]core.AnomalyRecord, error) {
	rows, err := r.queries.ListAnomalies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	return anomalyRecords(rows), nil
}

// RecentAnomalies returns at most limit anomalies, newest first.
func (r *SQLiteRepository) RecentAnomalies(ctx context.Context, limit int) ([]core.AnomalyRecord, error) {
	rows, err := r.queries.ListRecentAnomalies(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent anomalies: %w", err)
	}
	return anomalyRecords(rows), nil
}

// AnomalyStatusCounts counts expenses marked flagged and everything else.
func (r *SQLiteRepository) AnomalyStatusCounts(ctx context.Context) (flagged, normal int, err error) {
	groups, err := r.queries.CountExpensesByAnomalyStatus(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count anomaly status: %w", err)
	}
	for _, g := range groups {
		if strings.EqualFold(g.AnomalyStatus, AnomalyFlagged) {
			flagged += int(g.Count)
		} else {
			normal += int(g.Count)
		}
	}
	return flagged, normal, nil
}

// RecentActivities returns at most limit audit-trail entries, newest first.
func (r *SQLiteRepository) RecentActivities(ctx context.Context, limit int) ([]core.ActivityRecord, error) {
	rows, err := r.queries.ListRecentActivities(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	out := make([]core.ActivityRecord, 0, len(rows))
	for _, a := range rows {
		out = append(out, activityRecord(a))
	}
	return out, nil
}

// ActivityCounts counts audit-trail entries per lowercased action type.
func (r *SQLiteRepository) ActivityCounts(ctx context.Context) (map[string]int, error) {
	groups, err := r.queries.CountActivitiesByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}
	out := make(map[string]int, len(groups))
	for _, g := range groups {
		out[strings.ToLower(strings.TrimSpace(g.ActionType))] += int(g.Count)
	}
	return out, nil
}

// NewActivity is the input for LogActivity.
type NewActivity struct {
	User       string
	Action     string
	ActionType string
	Details    string
	IPAddress  string
}

// LogActivity appends an audit-trail entry stamped with the current time.
func (r *SQLiteRepository) LogActivity(ctx context.Context, in NewActivity) (core.ActivityRecord, error) {
	a, err := r.queries.CreateActivity(ctx, CreateActivityParams{
		UserName:   in.User,
		Action:     in.Action,
		ActionType: strings.ToLower(strings.TrimSpace(in.ActionType)),
		Details:    in.Details,
		IPAddress:  in.IPAddress,
		CreatedAt:  r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return core.ActivityRecord{}, fmt.Errorf("log activity: %w", err)
	}
	return activityRecord(a), nil
}

// GetSettings returns the settings of role, creating the defaults on first
// access.
func (r *SQLiteRepository) GetSettings(ctx context.Context, role string) (core.Settings, error) {
	row, err := r.queries.GetUserSettings(ctx, role)
	if errors.Is(err, sql.ErrNoRows) {
		s := core.DefaultSettings(role)
		if err := r.saveSettings(ctx, r.queries, s, true); err != nil {
			return core.Settings{}, err
		}
		row, err = r.queries.GetUserSettings(ctx, role)
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings for %s: %w", role, err)
	}
	return settingsFromRow(row), nil
}

// UpdateSettings applies patch to the settings of role.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, role string, patch core.SettingsPatch) (core.Settings, error) {
	return r.modifySettings(ctx, role, func(s core.Settings) core.Settings { return s.Apply(patch) })
}

// SetLogoPath records the uploaded organisation logo of role.
func (r *SQLiteRepository) SetLogoPath(ctx context.Context, role, path string) (core.Settings, error) {
	return r.modifySettings(ctx, role, func(s core.Settings) core.Settings {
		s.Organisation.LogoPath = path
		return s
	})
}

func (r *SQLiteRepository) modifySettings(ctx context.Context, role string, fn func(core.Settings) core.Settings) (core.Settings, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Settings{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	row, err := q.GetUserSettings(ctx, role)
	isNew := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isNew {
		return core.Settings{}, fmt.Errorf("get settings for %s: %w", role, err)
	}
	cur := core.DefaultSettings(role)
	if !isNew {
		cur = settingsFromRow(row)
	}

	if err := r.saveSettings(ctx, q, fn(cur), isNew); err != nil {
		return core.Settings{}, err
	}
	row, err = q.GetUserSettings(ctx, role)
	if err != nil {
		return core.Settings{}, fmt.Errorf("reload settings for %s: %w", role, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Settings{}, fmt.Errorf("commit settings: %w", err)
	}

	r.logger.InfoContext(ctx, "Settings updated", log.FieldRole, role)
	return settingsFromRow(row), nil
}

func (r *SQLiteRepository) saveSettings(ctx context.Context, q *Queries, s core.Settings, create bool) error {
	now := r.now().UTC().Format(time.RFC3339)
	row := settingsToRow(s)
	row.UpdatedAt = now
	row.CreatedAt = s.CreatedAt
	if create || row.CreatedAt == "" {
		row.CreatedAt = now
	}
	if err := q.UpsertUserSettings(ctx, row); err != nil {
		return fmt.Errorf("save settings for %s: %w", s.Role, err)
	}
	return nil
}

func expenseRecord(e Expense) core.ExpenseRecord {
	rec := core.ExpenseRecord{
		ID:            e.ID,
		File:          e.Filename,
		UploadedAt:    e.UploadedAt,
		Category:      e.Category,
		Vendor:        e.Vendor,
		TextPreview:   e.TextPreview,
		Status:        e.Status,
		AnomalyStatus: e.AnomalyStatus,
		AnomalyReason: e.AnomalyReason,
	}
	if e.Amount.Valid {
		rec.Total = e.Amount.Float64
	}
	return rec
}

func anomalyRecords(rows []Anomaly) []core.AnomalyRecord {
	out := make([]core.AnomalyRecord, 0, len(rows))
	for _, a := range rows {
		out = append(out, core.AnomalyRecord{
			ID:         core.ID(strconv.FormatInt(a.ID, 10)),
			ExpenseID:  a.ExpenseID.Int64,
			DetectedAt: a.DetectedAt,
			Vendor:     a.Vendor,
			Category:   a.Category,
			Amount:     a.Amount,
			Type:       a.AnomalyType,
			Severity:   a.Severity,
			Confidence: a.Confidence,
		})
	}
	return out
}

func activityRecord(a ActivityLog) core.ActivityRecord {
	return core.ActivityRecord{
		ID:         a.ID,
		User:       a.UserName,
		Action:     a.Action,
		ActionType: a.ActionType,
		Details:    a.Details,
		IPAddress:  a.IPAddress,
		Timestamp:  a.CreatedAt,
	}
}

func settingsFromRow(row UserSetting) core.Settings {
	s := core.Settings{
		ID:           row.ID,
		Role:         row.Role,
		UserID:       row.UserID,
		Profile:      core.Profile{DisplayName: row.DisplayName, Email: row.Email},
		Organisation: core.Organisation{Name: row.OrgName, Industry: row.Industry, LogoPath: row.LogoPath.String},
		AI: core.AISettings{
			Enabled:           row.AIEnabled,
			ResponseTone:      row.ResponseTone,
			AccuracyThreshold: row.AccuracyThreshold,
		},
		Notifications: core.Notifications{
			Email:         row.NotifyEmail,
			Push:          row.NotifyPush,
			ExpenseAlerts: row.ExpenseAlerts,
			WeeklyReports: row.WeeklyReports,
		},
		Preferences: core.Preferences{Theme: row.Theme},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.ContactInfo.Valid {
		s.Contact = &core.Contact{Info: row.ContactInfo.String}
	}
	if row.HelpContent.Valid {
		s.Help = &core.Help{Content: row.HelpContent.String}
	}
	return s
}

func settingsToRow(s core.Settings) UserSetting {
	row := UserSetting{
		Role:              s.Role,
		UserID:            s.UserID,
		DisplayName:       s.Profile.DisplayName,
		Email:             s.Profile.Email,
		OrgName:           s.Organisation.Name,
		Industry:          s.Organisation.Industry,
		LogoPath:          nullString(s.Organisation.LogoPath),
		AIEnabled:         s.AI.Enabled,
		ResponseTone:      s.AI.ResponseTone,
		AccuracyThreshold: s.AI.AccuracyThreshold,
		NotifyEmail:       s.Notifications.Email,
		NotifyPush:        s.Notifications.Push,
		ExpenseAlerts:     s.Notifications.ExpenseAlerts,
		WeeklyReports:     s.Notifications.WeeklyReports,
		Theme:             s.Preferences.Theme,
	}
	if s.Contact != nil {
		row.ContactInfo = sql.NullString{String: s.Contact.Info, Valid: true}
	}
	if s.Help != nil {
		row.HelpContent = sql.NullString{String: s.Help.Content, Valid: true}
	}
	return row
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
