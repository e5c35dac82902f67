package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/michaelbrown/turtle/internal/auth"
	"github.com/michaelbrown/turtle/internal/cache"
	"github.com/michaelbrown/turtle/internal/config"
	"github.com/michaelbrown/turtle/internal/observability"
	"github.com/michaelbrown/turtle/internal/sandbox"
	"github.com/michaelbrown/turtle/internal/storage"
)

// Server is the HTTP server for the turtle playground API.
type Server struct {
	cfg     *config.Config
	store   storage.Store
	runs    *sandbox.Manager
	auth    *auth.Service
	renders cache.Cache
	logger  *slog.Logger
	now     func() time.Time
	router  chi.Router
	http    *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, runs *sandbox.Manager, sessions *auth.Service, renders cache.Cache, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		runs:    runs,
		auth:    sessions,
		renders: renders,
		logger:  logger,
		now:     time.Now,
		router:  chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(observability.MetricsMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/docs", s.handleDocs)

		// Scripts
		r.Post("/run", s.handleRun)
		r.Delete("/runs/{id}", s.handleDisposeRun)
		r.Post("/render", s.handleRender)
		r.Get("/animate", s.handleAnimate)

		// Accounts
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Post("/auth/check", s.handleCheckUser)

		// Challenges
		r.Get("/challenges", s.handleListChallenges)
		r.Get("/challenges/{id}", s.handleGetChallenge)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Get("/challenges/{id}/submission", s.handleGetSubmission)
			r.Post("/challenges/{id}/submission", s.handleSubmit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(s.cfg.Server.AdminToken))
			r.Post("/challenges", s.handleCreateChallenge)
			r.Put("/challenges/{id}", s.handleUpdateChallenge)
			r.Delete("/challenges/{id}", s.handleDeleteChallenge)
			r.Get("/challenges/{id}/submissions", s.handleListSubmissions)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
		})
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("turtle server starting", "addr", "http://localhost"+addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.runs.CloseAll()

	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
