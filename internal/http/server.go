package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"runtime/debug"
	"time"

	"smartexpense/internal/backend"
	applog "smartexpense/internal/log"
	"smartexpense/internal/metrics"
	"smartexpense/internal/middleware/ratelimit"
	"smartexpense/internal/middleware/security"
	"smartexpense/internal/middleware/trace"
	"smartexpense/internal/tracker"
	appweb "smartexpense/web"
)

const (
	// DefaultSnapshotMaxAge is how long a fetched list is reused by page renders.
	DefaultSnapshotMaxAge = 5 * time.Second
	staticMaxAge          = 3600
)

var pageNames = []string{"dashboard", "add", "summary"}

// Dependencies groups what the server needs to serve the views and the JSON routes.
type Dependencies struct {
	Tracker *tracker.Tracker
	Backend *backend.BackendResult
	Metrics *metrics.Metrics
	Logger  *applog.Logger

	RateLimitPerMinute int
	SnapshotMaxAge     time.Duration

	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS
	Now       func() time.Time
}

// Server serves the expense views, the same-origin JSON API and the
// operational endpoints.
type Server struct {
	http.Server

	tracker    *tracker.Tracker
	backend    *backend.BackendResult
	metrics    *metrics.Metrics
	logger     *applog.Logger
	structured *applog.StructuredLogger

	pages map[string]*template.Template

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	snapshotMaxAge time.Duration
	now            func() time.Time
	started        time.Time
}

func NewServer(addr string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.FromContext(context.Background())
	}
	if deps.SnapshotMaxAge <= 0 {
		deps.SnapshotMaxAge = DefaultSnapshotMaxAge
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Templates == nil {
		deps.Templates = appweb.TemplatesFS
	}
	if deps.Static == nil {
		if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
			deps.Static = sub
		}
	}

	logger := deps.Logger.WithComponent(applog.ComponentHTTP)
	limitCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		tracker:        deps.Tracker,
		backend:        deps.Backend,
		metrics:        deps.Metrics,
		logger:         logger,
		structured:     applog.NewStructuredLogger(deps.Logger),
		limiter:        ratelimit.NewLimiter(limitCfg),
		detector:       security.NewDetector(),
		snapshotMaxAge: deps.SnapshotMaxAge,
		now:            deps.Now,
		started:        deps.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Metrics)

	pages, err := parsePages(deps.Templates)
	if err != nil {
		logger.Warn("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
	}
	s.pages = pages

	mux := http.NewServeMux()

	// Views
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /add", s.handleAddForm)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("POST /expenses", s.handleSubmitExpense)
	mux.HandleFunc("POST /expenses/{id}/delete", s.handleDeleteExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)

	// JSON API
	mux.HandleFunc("GET /api/expenses", s.handleAPIListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleAPICreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleAPIUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleAPIDeleteExpense)
	mux.HandleFunc("GET /api/analytics/monthly", s.handleAPIMonthly)
	mux.HandleFunc("GET /api/analytics/categories", s.handleAPICategories)
	mux.HandleFunc("GET /api/analytics/spending-alert", s.handleAPISpendingAlert)

	// Operations
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	if deps.Static != nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(deps.Static)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS")
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// parsePages builds one template set per page, each sharing the layout.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys,
			"templates/layout.html",
			"templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// middleware wraps the mux, outermost first: tracing and request logs, panic
// recovery, request-scoped logger, security headers, suspicious request
// detection and rate limiting of writes.
func (s *Server) middleware(next http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	h := s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly, s.onRateLimited)(next)
	h = s.detector.Middleware(func(*http.Request) { s.metrics.Suspicious() })(h)
	h = headers.Middleware(h)
	h = applog.Middleware(s.logger, trace.GetRequestID)(h)
	h = s.recoverPanics(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	if isAPIPath(r.URL.Path) {
		writeFail(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		return
	}
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.ErrorContext(r.Context(), "Panic while serving request",
				applog.FieldPath, r.URL.Path,
				applog.FieldError, fmt.Sprint(rec),
				applog.FieldErrorType, applog.ErrorTypeInternal,
				"stack", string(debug.Stack()))
			if isAPIPath(r.URL.Path) {
				writeFail(w, http.StatusInternalServerError, "internal server error")
				return
			}
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
	err := s.Server.Shutdown(ctx)
	s.limiter.Stop()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
