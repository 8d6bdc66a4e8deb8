// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: App (app.go) assembles the dependencies,
// and Server decides which URL maps to which handler, which middleware runs
// where, and how the process stops.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/rankboard/internal/auth"
	"github.com/sakif/rankboard/internal/handler"
	"github.com/sakif/rankboard/internal/middleware"
	"github.com/sakif/rankboard/internal/model"
)

// Server owns the router. The App it was built from is closed on shutdown.
type Server struct {
	router *chi.Mux
	app    *App
	logger *slog.Logger
}

func New(app *App, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		app:    app,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /metrics                                  Prometheus scrape
//	GET    /uploads/avatars/{name}                   avatar image (public)
//	GET    /auth/github/login                        OAuth redirect
//	GET    /auth/github/callback                     OAuth callback
//	GET    /api/health                               liveness + DB ping
//	POST   /api/auth/login                           rate limited
//	GET    /api/auth/session                         optional auth
//	POST   /api/auth/logout                          auth
//	GET    /api/users                                admin
//	POST   /api/users                                admin
//	GET    /api/users/{id}                           self or admin
//	PUT    /api/users/{id}                           self or admin
//	DELETE /api/users/{id}                           admin
//	POST   /api/users/{id}/avatar                    self or admin, rate limited
//	DELETE /api/users/{id}/avatar                    self or admin
//	GET    /api/challenges                           auth
//	POST   /api/challenges                           admin
//	GET    /api/challenges/{id}                      auth
//	PUT    /api/challenges/{id}                      admin
//	DELETE /api/challenges/{id}                      admin
//	GET    /api/challenges/{id}/submissions          auth (users see their own)
//	POST   /api/challenges/{id}/submissions          user, rate limited
//	PUT    /api/challenges/{id}/submissions          user, rate limited
//	GET    /api/challenges/{id}/scores               auth
//	GET    /api/challenges/{id}/leaderboard.xlsx     admin
//	GET    /api/challenges/{id}/leaderboard.png      auth
//	GET    /api/submissions/{id}/download            owner or admin
//	POST   /api/submissions/{id}/scores              admin
//	GET    /api/submissions/{id}/scores              admin
//	GET    /api/submissions/{id}/scores/me           owner
//
// MIDDLEWARE ORDER MATTERS:
// RequestID and RealIP run first so the logger and the rate limiters see
// them. Recoverer turns panics into 500s. CORS answers preflights before
// any auth check.
func (s *Server) setupRoutes() {
	cfg := s.app.Config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(middleware.ErrorDetails(!cfg.IsProduction()))

	// === Handlers ===
	authHandler := handler.NewAuthHandler(s.app.Auth, s.app.Tokens, s.app.GitHub, cfg.FrontendURL, cfg.IsProduction(), s.logger)
	userHandler := handler.NewUserHandler(s.app.Users, s.logger)
	challengeHandler := handler.NewChallengeHandler(s.app.Challenges, s.logger)
	submissionHandler := handler.NewSubmissionHandler(s.app.Submissions, s.logger)
	scoreHandler := handler.NewScoreHandler(s.app.Scores, s.app.Challenges, s.logger)
	healthHandler := handler.NewHealthHandler(s.app.DB, s.logger)

	// === Gates ===
	requireAuth := auth.RequireAuth(s.app.Tokens, s.app.DB)
	optionalAuth := auth.OptionalAuth(s.app.Tokens, s.app.DB)
	requireUser := auth.RequireRole(model.RoleUser)
	loginLimit := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.LoginRatePerMin))
	uploadLimit := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.UploadRatePerMin))

	// === Public routes ===
	s.router.Handle("/metrics", s.app.Metrics.Handler())
	s.router.Get("/uploads/avatars/{name}", userHandler.HandleServeAvatar)
	s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	// === API routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)
		r.With(loginLimit).Post("/auth/login", authHandler.HandleLogin)
		r.With(optionalAuth).Get("/auth/session", authHandler.HandleSession)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/auth/logout", authHandler.HandleLogout)

			r.Route("/users", func(r chi.Router) {
				r.With(auth.RequireAdmin).Get("/", userHandler.HandleList)
				r.With(auth.RequireAdmin).Post("/", userHandler.HandleCreate)
				r.Get("/{id}", userHandler.HandleGet)
				r.Put("/{id}", userHandler.HandleUpdate)
				r.With(auth.RequireAdmin).Delete("/{id}", userHandler.HandleDelete)
				r.With(uploadLimit).Post("/{id}/avatar", userHandler.HandleUploadAvatar)
				r.Delete("/{id}/avatar", userHandler.HandleDeleteAvatar)
			})

			r.Route("/challenges", func(r chi.Router) {
				r.Get("/", challengeHandler.HandleList)
				r.With(auth.RequireAdmin).Post("/", challengeHandler.HandleCreate)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", challengeHandler.HandleGet)
					r.With(auth.RequireAdmin).Put("/", challengeHandler.HandleUpdate)
					r.With(auth.RequireAdmin).Delete("/", challengeHandler.HandleDelete)

					r.Get("/submissions", submissionHandler.HandleList)
					r.With(requireUser, uploadLimit).Post("/submissions", submissionHandler.HandleSubmit)
					r.With(requireUser, uploadLimit).Put("/submissions", submissionHandler.HandleSubmit)

					r.Get("/scores", scoreHandler.HandleLeaderboard)
					r.With(auth.RequireAdmin).Get("/leaderboard.xlsx", scoreHandler.HandleExportXLSX)
					r.Get("/leaderboard.png", scoreHandler.HandleChartPNG)
				})
			})

			r.Route("/submissions/{id}", func(r chi.Router) {
				r.Get("/download", submissionHandler.HandleDownload)
				r.With(auth.RequireAdmin).Post("/scores", scoreHandler.HandleScore)
				r.With(auth.RequireAdmin).Get("/scores", scoreHandler.HandleListForSubmission)
				r.Get("/scores/me", scoreHandler.HandleMyScores)
			})
		})
	})
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to 30s for in-flight requests
//  3. close the App (database)
func (s *Server) Start() error {
	defer s.app.Close()

	port := s.app.Config.Port
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads of up to 50 MiB need a generous read budget.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", port),
			slog.String("env", s.app.Config.Env),
			slog.String("database", s.app.Config.DatabasePath),
			slog.String("storage", s.app.Config.StorageBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
