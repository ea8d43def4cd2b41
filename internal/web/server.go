// Package web provides the HTTP server and handlers for the course service.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/coursehub/internal/config"
	"github.com/JonMunkholm/coursehub/internal/core"
	"github.com/JonMunkholm/coursehub/internal/store"
	"github.com/JonMunkholm/coursehub/internal/web/middleware"
)

// CourseStore is the persistence the handlers need. *store.Store implements it.
//
//go:generate mockgen -destination=mocks/mock_course_store.go -package=mocks github.com/JonMunkholm/coursehub/internal/web CourseStore
type CourseStore interface {
	List(ctx context.Context) ([]store.Course, error)
	Create(ctx context.Context, code, name string) (store.Course, error)
	Rename(ctx context.Context, code, name, newCode string) (store.Course, error)
	Delete(ctx context.Context, code string) (store.Course, error)
	UpsertAll(ctx context.Context, records []core.CourseRecord) (store.UpsertResult, error)
	FindDuplicates(ctx context.Context) ([]core.DuplicateGroup, error)
}

// SyncJobs runs reconciliation jobs in the background. *core.SyncService
// implements it.
type SyncJobs interface {
	StartSync(ctx context.Context, fileName string, records []core.CourseRecord) (string, error)
	SubscribeProgress(jobID string) (<-chan core.SyncProgress, error)
	CancelSync(jobID string) error
	GetSyncProgress(jobID string) (core.SyncProgress, error)
	GetSyncResult(ctx context.Context, jobID string) (*core.SyncJobResult, error)
	LimiterStatus() core.SyncLimiterStatus
}

// Server is the HTTP server for the course service.
type Server struct {
	cfg      *config.Config
	courses  CourseStore
	syncs    SyncJobs
	metrics  http.Handler
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer creates a Server. metrics may be nil to disable /metrics.
func NewServer(cfg *config.Config, courses CourseStore, syncs SyncJobs, metrics http.Handler) *Server {
	s := &Server{
		cfg:     cfg,
		courses: courses,
		syncs:   syncs,
		metrics: metrics,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	syncLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		syncLimit = s.newRateLimiter(s.cfg.Rate.SyncLimit, time.Minute).middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.BearerAuth(&s.cfg.Security))

		// Streaming and blocking routes manage their own lifetime
		r.Get("/admin/sync/{jobID}/progress", s.handleSyncProgress)
		r.Get("/admin/sync/{jobID}/result", s.handleSyncResult)

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Post("/course/create/{code}", s.handleCreateCourse)

			r.Get("/admin/dbcourses", s.handleListCourses)
			r.Get("/admin/courses", s.handleCoursesFragment)
			r.Get("/admin/courses/duplicates", s.handleDuplicates)
			r.Get("/admin/courses/export.xlsx", s.handleExportWorkbook)

			r.Patch("/admin/course/{code}", s.handleRenameCourse)
			r.Delete("/admin/course/{code}", s.handleDeleteCourse)

			r.With(syncLimit).Post("/admin/courses/upload", s.handleUploadCourses)
			r.With(syncLimit).Post("/admin/courses/preview", s.handlePreview)
			r.With(syncLimit).Post("/admin/courses/sync", s.handleStartSync)

			r.Get("/admin/sync/{jobID}", s.handleSyncStatus)
			r.Post("/admin/sync/{jobID}/cancel", s.handleCancelSync)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"syncs":  s.syncs.LimiterStatus(),
	})
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
