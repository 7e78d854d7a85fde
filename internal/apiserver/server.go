// Package apiserver is a local stand-in for the expense service: it serves
// the expense, anomaly and settings endpoints the dashboard reads from,
// backed by SQLite.
package apiserver

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"spendsight/internal/analytics"
	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/events"
	httpx "spendsight/internal/http"
	"spendsight/internal/log"
	"spendsight/internal/middleware/security"
	"spendsight/internal/middleware/trace"
	"spendsight/internal/storage"
)

const (
	defaultRecentLimit   = 10
	maxRecentLimit       = 100
	defaultActivityLimit = 100
	maxActivityLimit     = 500
	logoDir              = "logos"
	receiptDir           = "receipts"
)

// Store is the persistence the API needs.
type Store interface {
	Ping(ctx context.Context) error
	ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
	CreateExpense(ctx context.Context, in storage.NewExpense) (core.ExpenseRecord, error)
	ListAnomalies(ctx context.Context) ([]core.AnomalyRecord, error)
	RecentAnomalies(ctx context.Context, limit int) ([]core.AnomalyRecord, error)
	AnomalyStatusCounts(ctx context.Context) (flagged, normal int, err error)
	GetSettings(ctx context.Context, role string) (core.Settings, error)
	UpdateSettings(ctx context.Context, role string, patch core.SettingsPatch) (core.Settings, error)
	SetLogoPath(ctx context.Context, role, path string) (core.Settings, error)
	RecentActivities(ctx context.Context, limit int) ([]core.ActivityRecord, error)
	ActivityCounts(ctx context.Context) (map[string]int, error)
	LogActivity(ctx context.Context, in storage.NewActivity) (core.ActivityRecord, error)
}

// Notifier announces data changes to other processes.
type Notifier interface {
	Publish(ctx context.Context, e events.Event) error
}

// Config configures the API server.
type Config struct {
	Addr      string
	UploadDir string
	// Source tags events published by this server.
	Source string
	// WritesPerMinute caps mutating requests per client; 0 disables it.
	WritesPerMinute int
}

// Server serves the expense API.
type Server struct {
	http.Server
	store     Store
	notifier  Notifier
	uploadDir string
	source    string
	logger    *log.Logger
	harden    *httpx.Hardening

	shutdownOnce sync.Once
}

// NewServer builds the router. notifier may be nil.
func NewServer(cfg Config, store Store, notifier Notifier, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		store:     store,
		notifier:  notifier,
		uploadDir: cfg.UploadDir,
		source:    cfg.Source,
		logger:    logger.WithComponent(log.ComponentAPI),
		harden:    httpx.NewHardening(cfg.WritesPerMinute, logger),
	}

	router := chi.NewRouter()
	router.Use(trace.NewMiddleware(logger).Handler)
	router.Use(middleware.Recoverer)
	s.harden.Apply(router)

	router.Get("/", s.handleHome)
	router.Get("/healthz", s.handleHealth)
	router.With(s.harden.Limit).Post("/ocr", s.handleOCR)
	router.Route("/expenses", func(r chi.Router) {
		r.Get("/", s.handleExpenses)
		r.Get("/by-category", s.handleExpensesByCategory)
		r.Get("/stats", s.handleExpenseStats)
	})
	router.Route("/anomalies", func(r chi.Router) {
		r.Get("/", s.handleAnomalies)
		r.Get("/stats", s.handleAnomalyStats)
		r.Get("/recent", s.handleRecentAnomalies)
	})
	router.Route("/activity-logs", func(r chi.Router) {
		r.Get("/", s.handleActivities)
		r.Get("/stats", s.handleActivityStats)
	})
	router.Route("/settings/{role}", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.With(s.harden.Limit).Put("/", s.handleUpdateSettings)
		r.With(s.harden.Limit).Post("/upload-logo", s.handleUploadLogo)
	})
	if s.uploadDir != "" {
		router.With(security.StaticAssetMiddleware(3600)).
			Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	}
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.NotFoundError("Not found").Write(w)
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.harden.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	httpx.NewJSONResponse().Body(map[string]string{
		"status":  "success",
		"message": "expense api running",
	}).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		httpx.ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExpenses(r.Context())
	if err != nil {
		s.internalError(w, r, "/expenses", err)
		return
	}
	httpx.NewJSONResponse().Body(struct {
		Success  bool                 `json:"success"`
		Expenses []core.ExpenseRecord `json:"expenses"`
		Count    int                  `json:"count"`
	}{true, nonNil(expenses), len(expenses)}).Write(w)
}

func (s *Server) handleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExpenses(r.Context())
	if err != nil {
		s.internalError(w, r, "/expenses/by-category", err)
		return
	}
	httpx.NewJSONResponse().Body(struct {
		Success    bool                          `json:"success"`
		ByCategory map[string]api.CategoryBucket `json:"by_category"`
	}{true, ByCategory(expenses)}).Write(w)
}

func (s *Server) handleExpenseStats(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExpenses(r.Context())
	if err != nil {
		s.internalError(w, r, "/expenses/stats", err)
		return
	}
	httpx.NewJSONResponse().Body(struct {
		Success bool `json:"success"`
		api.ExpenseStats
	}{true, ExpenseStats(expenses)}).Write(w)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	anomalies, err := s.store.ListAnomalies(r.Context())
	if err != nil {
		s.internalError(w, r, "/anomalies", err)
		return
	}
	writeAnomalies(w, anomalies)
}

func (s *Server) handleRecentAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := httpx.ParseLimit(r.URL.Query(), "limit", defaultRecentLimit, maxRecentLimit)
	anomalies, err := s.store.RecentAnomalies(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "/anomalies/recent", err)
		return
	}
	writeAnomalies(w, anomalies)
}

func writeAnomalies(w http.ResponseWriter, anomalies []core.AnomalyRecord) {
	httpx.NewJSONResponse().Body(struct {
		Success   bool                 `json:"success"`
		Anomalies []core.AnomalyRecord `json:"anomalies"`
	}{true, nonNil(anomalies)}).Write(w)
}

func (s *Server) handleAnomalyStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flagged, normal, err := s.store.AnomalyStatusCounts(ctx)
	if err != nil {
		s.internalError(w, r, "/anomalies/stats", err)
		return
	}
	anomalies, err := s.store.ListAnomalies(ctx)
	if err != nil {
		s.internalError(w, r, "/anomalies/stats", err)
		return
	}
	httpx.NewJSONResponse().Body(struct {
		Success bool `json:"success"`
		api.AnomalyStats
	}{true, AnomalyStats(flagged, normal, anomalies)}).Write(w)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit := httpx.ParseLimit(r.URL.Query(), "limit", defaultActivityLimit, maxActivityLimit)
	activities, err := s.store.RecentActivities(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "/activity-logs", err)
		return
	}
	httpx.NewJSONResponse().Body(struct {
		Success    bool                  `json:"success"`
		Activities []core.ActivityRecord `json:"activities"`
	}{true, nonNil(activities)}).Write(w)
}

func (s *Server) handleActivityStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.ActivityCounts(r.Context())
	if err != nil {
		s.internalError(w, r, "/activity-logs/stats", err)
		return
	}
	httpx.NewJSONResponse().Body(struct {
		Success bool `json:"success"`
		api.ActivityStats
	}{true, ActivityStats(counts)}).Write(w)
}

// handleOCR stores an uploaded receipt. Text extraction is not performed,
// so every upload lands in review with empty text.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := httpx.FormFile(w, r)
	if err != nil {
		httpx.BadRequestError(uploadError(err)).Write(w)
		return
	}
	defer f.Close()

	name := httpx.SanitizeFilename(hdr.Filename)
	if _, err := s.saveUpload(receiptDir, uuid.NewString()+"-"+name, f); err != nil {
		s.internalError(w, r, "/ocr", err)
		return
	}

	rec, err := s.store.CreateExpense(r.Context(), storage.NewExpense{
		Filename: name,
		Status:   core.StatusNeedsReview,
	})
	if err != nil {
		s.internalError(w, r, "/ocr", err)
		return
	}
	s.record(r, storage.NewActivity{
		User:       core.DefaultSettings(core.RoleEmployee).Profile.DisplayName,
		Action:     "Receipt Uploaded",
		ActionType: core.ActionUploaded,
		Details:    "Uploaded " + name,
	})
	s.notify(r.Context(), events.ExpenseUploaded)

	httpx.NewJSONResponse().Body(struct {
		Success bool `json:"success"`
		api.UploadResult
	}{true, api.UploadResult{ExpenseID: rec.ID}}).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	settings, err := s.store.GetSettings(r.Context(), role)
	if err != nil {
		s.internalError(w, r, "/settings/"+role, err)
		return
	}
	writeSettings(w, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	var patch core.SettingsPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.BadRequestError(err.Error()).Write(w)
		return
	}
	settings, err := s.store.UpdateSettings(r.Context(), role, patch)
	if err != nil {
		s.internalError(w, r, "/settings/"+role, err)
		return
	}
	s.record(r, storage.NewActivity{
		User:       settings.Profile.DisplayName,
		Action:     "Settings Updated",
		ActionType: core.ActionEdited,
		Details:    "Updated " + role + " settings",
	})
	s.notify(r.Context(), events.SettingsUpdated)
	writeSettings(w, settings)
}

func (s *Server) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	f, hdr, err := httpx.FormFile(w, r)
	if err != nil {
		httpx.BadRequestError(uploadError(err)).Write(w)
		return
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(httpx.SanitizeFilename(hdr.Filename)))
	rel, err := s.saveUpload(logoDir, role+"-"+uuid.NewString()+ext, f)
	if err != nil {
		s.internalError(w, r, "/settings/"+role+"/upload-logo", err)
		return
	}
	logoPath := "/uploads/" + filepath.ToSlash(rel)

	settings, err := s.store.SetLogoPath(r.Context(), role, logoPath)
	if err != nil {
		s.internalError(w, r, "/settings/"+role+"/upload-logo", err)
		return
	}
	s.notify(r.Context(), events.SettingsUpdated)
	httpx.NewJSONResponse().Body(struct {
		Success bool `json:"success"`
		api.LogoResult
	}{true, api.LogoResult{LogoPath: logoPath, Settings: settings}}).Write(w)
}

func writeSettings(w http.ResponseWriter, settings core.Settings) {
	httpx.NewJSONResponse().Body(struct {
		Success  bool          `json:"success"`
		Settings core.Settings `json:"settings"`
	}{true, settings}).Write(w)
}

func roleParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	role := chi.URLParam(r, "role")
	if !core.IsRole(role) {
		httpx.BadRequestError("Invalid role").Write(w)
		return "", false
	}
	return role, true
}

// saveUpload writes src under uploadDir/sub and returns the path relative to
// uploadDir.
func (s *Server) saveUpload(sub, name string, src io.Reader) (string, error) {
	if s.uploadDir == "" {
		_, err := io.Copy(io.Discard, src)
		return filepath.Join(sub, name), err
	}
	dir := filepath.Join(s.uploadDir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return filepath.Join(sub, name), nil
}

// record appends to the audit trail. A failure is logged and does not fail
// the request that caused it.
func (s *Server) record(r *http.Request, in storage.NewActivity) {
	in.IPAddress = s.harden.ClientIP(r)
	if _, err := s.store.LogActivity(r.Context(), in); err != nil {
		s.logger.WarnContext(r.Context(), "Record activity failed",
			log.NewFields().WithEndpoint(r.URL.Path, 0).WithError(err).ToSlice()...)
	}
}

func (s *Server) notify(ctx context.Context, kind events.Kind) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, events.New(kind, s.source)); err != nil {
		s.logger.WarnContext(ctx, "Publish refresh event failed", log.FieldEventKind, kind, log.FieldError, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	fields := log.NewFields().
		WithEndpoint(endpoint, http.StatusInternalServerError).
		WithError(err)
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	httpx.InternalServerError(err.Error()).Write(w)
}

func uploadError(err error) string {
	if err == httpx.ErrMissingFile {
		return "No file uploaded"
	}
	return err.Error()
}

// ByCategory groups expenses into server-side buckets.
func ByCategory(expenses []core.ExpenseRecord) map[string]api.CategoryBucket {
	out := make(map[string]api.CategoryBucket)
	for _, e := range expenses {
		cat := e.CategoryOrDefault()
		b := out[cat]
		b.Total += e.Total
		b.Count++
		b.Expenses = append(b.Expenses, e)
		out[cat] = b
	}
	return out
}

// ActivityStats computes the summary served by /activity-logs/stats from
// per-type counts.
func ActivityStats(counts map[string]int) api.ActivityStats {
	stats := api.ActivityStats{ActionCounts: make(map[string]int, len(counts))}
	for kind, n := range counts {
		stats.ActionCounts[kind] = n
		stats.TotalActivities += n
	}
	stats.Approvals = counts[core.ActionApproved]
	stats.FlagsRejections = counts[core.ActionFlagged] + counts[core.ActionRejected]
	stats.ReportsGenerated = counts[core.ActionGenerated]
	return stats
}

// ExpenseStats computes the summary served by /expenses/stats. Amounts and
// percentages are rounded to two decimals.
func ExpenseStats(expenses []core.ExpenseRecord) api.ExpenseStats {
	aggs := analytics.AggregateByCategory(expenses)
	total := analytics.GrandTotal(aggs)

	stats := api.ExpenseStats{
		TotalExpenses:       len(expenses),
		TotalAmount:         round2(total),
		ByCategory:          make(map[string]float64, len(aggs)),
		CategoryPercentages: make(map[string]float64, len(aggs)),
	}
	for _, a := range aggs {
		stats.ByCategory[a.Category] = a.Amount
		pct := 0.0
		if total > 0 {
			pct = round2(a.Amount / total * 100)
		}
		stats.CategoryPercentages[a.Category] = pct
	}
	return stats
}

// AnomalyStats builds the /anomalies/stats body.
func AnomalyStats(flagged, normal int, anomalies []core.AnomalyRecord) api.AnomalyStats {
	stats := api.AnomalyStats{
		FlaggedCount: flagged,
		NormalCount:  normal,
		BySeverity:   make(map[string]int, len(core.Severities)),
	}
	if total := flagged + normal; total > 0 {
		stats.FlaggedPercentage = round2(float64(flagged) / float64(total) * 100)
	}
	summary := analytics.SummarizeSeverity(anomalies)
	for _, sev := range core.Severities {
		stats.BySeverity[sev.String()] = analytics.Count(summary, sev)
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
