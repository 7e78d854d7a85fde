package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"spendsight/internal/api"
	"spendsight/internal/cache"
	"spendsight/internal/core"
	"spendsight/internal/dashboard"
	"spendsight/internal/events"
	"spendsight/internal/log"
	"spendsight/internal/middleware/trace"
)

// Backend is the part of the expense API that changes data.
type Backend interface {
	GetSettings(ctx context.Context, role string) (core.Settings, error)
	UpdateSettings(ctx context.Context, role string, patch core.SettingsPatch) (core.Settings, error)
	UploadLogo(ctx context.Context, role, filename string, r io.Reader) (api.LogoResult, error)
	UploadReceipt(ctx context.Context, filename string, r io.Reader) (api.UploadResult, error)
}

// Config configures the dashboard server.
type Config struct {
	Addr         string
	ViewCacheTTL time.Duration
	// Source tags events published by this server.
	Source string
	// WritesPerMinute caps mutating requests per client; 0 disables it.
	WritesPerMinute int
}

// Server serves page views and forwards mutations to the expense API.
type Server struct {
	http.Server
	dash    *dashboard.Dashboard
	backend Backend
	logger  *log.Logger
	tracer  *trace.Middleware
	harden  *Hardening
	source  string

	views  *cache.LRUCache[[]byte]
	caches *cache.Manager

	// mounted records pages that have been loaded at least once.
	mounted      sync.Map
	shutdownOnce sync.Once
}

const viewCacheSize = 64

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(cfg Config, dash *dashboard.Dashboard, backend Backend, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	ttl := cfg.ViewCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	s := &Server{
		dash:    dash,
		backend: backend,
		logger:  logger.WithComponent(log.ComponentHTTP),
		tracer:  trace.NewMiddleware(logger),
		harden:  NewHardening(cfg.WritesPerMinute, logger),
		source:  cfg.Source,
		views:   cache.NewLRUCache[[]byte](viewCacheSize, ttl),
		caches:  cache.NewManager(logger),
	}
	s.caches.Register(s.views)
	s.caches.StartCleanup(time.Minute)

	dash.OnRefresh(func(page string) {
		s.views.Delete(viewKey(page))
	})

	router := chi.NewRouter()
	router.Use(s.tracer.Handler)
	router.Use(middleware.Recoverer)
	s.harden.Apply(router)

	router.Get("/healthz", handleHealth)
	router.Route("/api", func(r chi.Router) {
		r.Get("/pages", s.handlePages)
		r.Get("/pages/{page}", s.handlePage)
		r.Get("/reports/export.txt", s.handleReportText)
		r.Get("/settings/{role}", s.handleGetSettings)
		r.Group(func(r chi.Router) {
			r.Use(s.harden.Limit)
			r.Post("/pages/{page}/refresh", s.handleRefresh)
			r.Post("/uploads", s.handleUpload)
			r.Put("/settings/{role}", s.handleUpdateSettings)
			r.Post("/settings/{role}/logo", s.handleUploadLogo)
		})
	})
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops cache cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.harden.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics exposes the request counters.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func viewKey(page string) string { return "page:" + page }

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{"success": true, "pages": s.dash.Names()}).Write(w)
}

// handlePage serves the current view of a page. The first request for a page
// loads it synchronously; later requests see whatever the last refresh left.
// The first load outlives the request so a client that hangs up does not
// leave the page mounted but empty.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")
	p, err := s.dash.Page(name)
	if err != nil {
		NotFoundError(err.Error()).Write(w)
		return
	}
	if _, seen := s.mounted.LoadOrStore(name, struct{}{}); !seen {
		s.refresh(context.WithoutCancel(r.Context()), name)
	}

	if fp, ok := p.(dashboard.Filterable); ok && hasFilter(r) {
		s.writeFiltered(w, r, fp)
		return
	}
	if data, ok := s.views.Get(viewKey(name)); ok {
		NewJSONResponse().Header("X-Cache", "HIT").Raw(data).Write(w)
		return
	}
	s.writeView(w, r, p, "MISS")
}

func hasFilter(r *http.Request) bool {
	q := r.URL.Query()
	return q.Get("action") != "" || q.Get("q") != ""
}

// writeFiltered serves a narrowed view. Filtered views are not cached.
func (s *Server) writeFiltered(w http.ResponseWriter, r *http.Request, fp dashboard.Filterable) {
	view, err := fp.FilteredView(r.URL.Query().Get("action"), r.URL.Query().Get("q"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		InternalServerError("failed to render page").Write(w)
		return
	}
	NewJSONResponse().Header("X-Cache", "BYPASS").Raw(data).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")
	p, err := s.dash.Page(name)
	if err != nil {
		NotFoundError(err.Error()).Write(w)
		return
	}
	s.mounted.Store(name, struct{}{})
	s.refresh(r.Context(), name)
	s.writeView(w, r, p, "BYPASS")
}

func (s *Server) refresh(ctx context.Context, name string) {
	if _, err := s.dash.Refresh(ctx, name); err != nil {
		log.FromContext(ctx).DebugContext(ctx, "Page refreshed with failed sections",
			log.FieldPage, name, log.FieldError, err)
	}
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, p dashboard.Page, cacheStatus string) {
	data, err := json.Marshal(p.View())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Encode page view failed",
			log.FieldPage, p.Name(), log.FieldError, err)
		InternalServerError("failed to render page").Write(w)
		return
	}
	s.views.Set(viewKey(p.Name()), data)
	NewJSONResponse().Header("X-Cache", cacheStatus).Raw(data).Write(w)
}

func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request) {
	p, err := s.dash.Page(dashboard.ReportsPage)
	if err != nil {
		NotFoundError(err.Error()).Write(w)
		return
	}
	src, ok := p.(dashboard.ReportSource)
	if !ok {
		InternalServerError("reports page cannot export").Write(w)
		return
	}
	if _, seen := s.mounted.LoadOrStore(dashboard.ReportsPage, struct{}{}); !seen {
		s.refresh(r.Context(), dashboard.ReportsPage)
	}
	report := src.Report()
	if report.UpdatedAt == nil {
		msg := report.Error
		if msg == "" {
			msg = "report is still loading"
		}
		ErrorResponse(http.StatusServiceUnavailable, msg).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expense-report.txt"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report.Data.Text())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := FormFile(w, r)
	if err != nil {
		BadRequestError(uploadErrorMessage(err)).Write(w)
		return
	}
	defer f.Close()

	res, err := s.backend.UploadReceipt(r.Context(), SanitizeFilename(hdr.Filename), f)
	if err != nil {
		s.upstreamError(w, r, "/ocr", err)
		return
	}

	s.publish(r.Context(), events.ExpenseUploaded)
	NewJSONResponse().
		Trigger(events.ExpenseUploaded).
		Body(struct {
			Success bool `json:"success"`
			api.UploadResult
		}{true, res}).
		Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	settings, err := s.backend.GetSettings(r.Context(), role)
	if err != nil {
		s.upstreamError(w, r, "/settings/"+role, err)
		return
	}
	NewJSONResponse().Body(settingsBody{true, settings}).Write(w)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	var patch core.SettingsPatch
	if err := DecodeJSON(r, &patch); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	settings, err := s.backend.UpdateSettings(r.Context(), role, patch)
	if err != nil {
		s.upstreamError(w, r, "/settings/"+role, err)
		return
	}
	s.publish(r.Context(), events.SettingsUpdated)
	NewJSONResponse().
		Trigger(events.SettingsUpdated).
		Body(settingsBody{true, settings}).
		Write(w)
}

func (s *Server) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	f, hdr, err := FormFile(w, r)
	if err != nil {
		BadRequestError(uploadErrorMessage(err)).Write(w)
		return
	}
	defer f.Close()

	res, err := s.backend.UploadLogo(r.Context(), role, SanitizeFilename(hdr.Filename), f)
	if err != nil {
		s.upstreamError(w, r, "/settings/"+role+"/upload-logo", err)
		return
	}
	s.publish(r.Context(), events.SettingsUpdated)
	NewJSONResponse().
		Trigger(events.SettingsUpdated).
		Body(struct {
			Success bool `json:"success"`
			api.LogoResult
		}{true, res}).
		Write(w)
}

type settingsBody struct {
	Success  bool          `json:"success"`
	Settings core.Settings `json:"settings"`
}

func (s *Server) role(w http.ResponseWriter, r *http.Request) (string, bool) {
	role := chi.URLParam(r, "role")
	if !core.IsRole(role) {
		BadRequestError("Invalid role").Write(w)
		return "", false
	}
	return role, true
}

func (s *Server) publish(ctx context.Context, kind events.Kind) {
	e := events.New(kind, s.source)
	s.dash.Bus().Publish(e)
	log.FromContext(ctx).DebugContext(ctx, "Refresh event published",
		log.FieldEventKind, e.Kind, log.FieldEventID, e.ID)
}

// upstreamError relays an expense API failure. Client errors keep their
// status; everything else becomes 502.
func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status := api.StatusCode(err)
	if status < 400 || status >= 500 {
		status = http.StatusBadGateway
	}
	fields := log.NewFields().
		WithEndpoint(endpoint, api.StatusCode(err)).
		WithError(err)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Expense API request failed", fields.ToSlice()...)
	ErrorResponse(status, api.Message(err)).Write(w)
}

func uploadErrorMessage(err error) string {
	if errors.Is(err, ErrMissingFile) {
		return "No file part"
	}
	return err.Error()
}
