package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"sitepay/internal/core"
	"sitepay/internal/log"
	"sitepay/internal/metrics"
	"sitepay/internal/services"
	"sitepay/internal/state"
	appweb "sitepay/web"
)

// Domain is the part of the state container the handlers use.
type Domain interface {
	Ready() bool
	Errors() []state.SubscriptionError

	Projects() []core.Project
	Vendors() []core.Vendor
	Payments() []core.Payment
	Project(id string) (core.Project, bool)
	Vendor(id string) (core.Vendor, bool)
	Payment(id string) (core.Payment, bool)

	SaveProject(ctx context.Context, p core.Project) (string, error)
	SaveVendor(ctx context.Context, v core.Vendor) (string, error)
	SavePayment(ctx context.Context, p core.Payment) (string, error)
	DeleteProject(ctx context.Context, id string) error
	DeleteVendor(ctx context.Context, id string) error
	DeletePayment(ctx context.Context, id string) error
}

type Config struct {
	Addr      string
	Domain    Domain
	Dashboard *services.DashboardService
	Formatter *core.CurrencyFormatter
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

type Server struct {
	http.Server
	domain      Domain
	dashboard   *services.DashboardService
	formatter   *core.CurrencyFormatter
	metrics     *metrics.Metrics
	logger      *log.Logger
	templates   *template.Template
	rateLimiter *rateLimiter
	submissions *submissions
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and configures routes, returning a
// ready-to-run server.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	formatter := cfg.Formatter
	if formatter == nil {
		formatter = core.MustCurrencyFormatter("ja-JP", "JPY")
	}

	s := &Server{
		domain:      cfg.Domain,
		dashboard:   cfg.Dashboard,
		formatter:   formatter,
		metrics:     cfg.Metrics,
		logger:      logger,
		rateLimiter: newRateLimiter(60),
		submissions: newSubmissions(),
		started:     time.Now(),
	}

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.rateLimiter.stop()
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /payments", s.handlePayments)
	mux.HandleFunc("GET /payments/new", s.handleNewPayment)
	mux.HandleFunc("GET /payments/{id}", s.handleEditPayment)
	mux.HandleFunc("POST /payments", s.handleSavePayment)
	mux.HandleFunc("POST /payments/{id}/delete", s.handleDeletePayment)
	mux.HandleFunc("GET /vendors", s.handleVendors)
	mux.HandleFunc("POST /vendors", s.handleCreateVendor)
	mux.HandleFunc("POST /vendors/{id}/delete", s.handleDeleteVendor)
	mux.HandleFunc("GET /projects", s.handleProjects)
	mux.HandleFunc("POST /projects", s.handleCreateProject)
	mux.HandleFunc("POST /projects/{id}/delete", s.handleDeleteProject)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboardAPI)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           log.Middleware(logger, requestID)(s.withSecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":       s.formatter.Format,
		"statusLabel": func(st core.Status) string { return core.LookupStatus(st).Label },
		"statusClass": func(st core.Status) string { return core.LookupStatus(st).Class },
		"vendorType":  func(t core.VendorType) string { return t.Label() },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format(core.DateLayout)
		},
	}
}

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data:; " +
	"connect-src 'self'; " +
	"object-src 'none'; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

// withSecurityHeaders adds security headers and rate limits writes.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		logger := log.FromContext(r.Context())

		if reason := suspiciousReason(r); reason != "" {
			s.metrics.SecurityEvent(metrics.EventSuspicious)
			logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, "reason", reason)
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.metrics.SecurityEvent(metrics.EventRateLimited)
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and the HTTP server. It is safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
