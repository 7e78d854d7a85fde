package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"spendsight/internal/log"
	"spendsight/internal/middleware/ratelimit"
	"spendsight/internal/middleware/security"
)

// Hardening is the middleware stack both servers put in front of their
// routes: suspicious-request detection, security headers and a per-client limit on
// mutating requests.
type Hardening struct {
	detector *security.Detector
	headers  *security.HeadersMiddleware
	limiter  *ratelimit.Limiter
}

// NewHardening builds the stack. writesPerMinute <= 0 disables the limit.
func NewHardening(writesPerMinute int, logger *log.Logger) *Hardening {
	h := &Hardening{
		detector: security.NewDetector(logger),
		headers:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
	}
	if writesPerMinute > 0 {
		h.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: writesPerMinute})
	}
	return h
}

// Apply installs detection and headers on every route of r.
func (h *Hardening) Apply(r chi.Router) {
	r.Use(h.detector.Middleware)
	r.Use(h.headers.Middleware)
}

// Limit wraps a mutating handler with the per-client limit.
func (h *Hardening) Limit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Middleware(h.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, h.detector.ClientIP(r))
		TooManyRequestsError().Write(w)
	})(next)
}

// ClientIP resolves the caller's address behind trusted proxies.
func (h *Hardening) ClientIP(r *http.Request) string {
	return h.detector.ClientIP(r)
}

// Stop releases the limiter's cleanup goroutine.
func (h *Hardening) Stop() {
	if h.limiter != nil {
		h.limiter.Stop()
	}
}
