// Package server is the composition root: it opens the backends, builds the
// services and handlers on top of them, and mounts everything on a chi
// router.
//
// DEPENDENCY FLOW:
//
//	config ─► Store (sqlite | postgres) ─┐
//	       ─► cache (memory | redis) ────┼─► services ─► handlers ─► routes
//	       ─► Generator (Gemini) ────────┘
//
// main.go only loads configuration and calls New and Start.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/careercoach/internal/auth"
	"github.com/sakif/careercoach/internal/cache"
	"github.com/sakif/careercoach/internal/config"
	"github.com/sakif/careercoach/internal/handler"
	"github.com/sakif/careercoach/internal/insight"
	"github.com/sakif/careercoach/internal/metrics"
	"github.com/sakif/careercoach/internal/middleware"
	"github.com/sakif/careercoach/internal/repository"
	"github.com/sakif/careercoach/internal/repository/postgres"
	sqliteRepo "github.com/sakif/careercoach/internal/repository/sqlite"
	"github.com/sakif/careercoach/internal/service"
)

// Deps are the backends a Server runs on. New builds them from config;
// tests pass their own.
type Deps struct {
	Store     repository.Store
	Cache     cache.Client
	Generator insight.Generator

	// Provider may be nil, in which case the login routes are not mounted.
	Provider handler.IdentityProvider
}

// Server owns the router and the backends. The backends are closed when
// Start returns.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	store     repository.Store
	cache     cache.Client
	metrics   *metrics.Recorder
	tokens    *auth.TokenService
	directory *auth.CacheDirectory
}

// OpenStore connects to the configured database. It does not migrate.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.Storage.DSN, postgres.Options{
			MaxConns: cfg.Storage.Postgres.MaxConns,
			MinConns: cfg.Storage.Postgres.MinConns,
		})
	case "sqlite":
		// os.MkdirAll is a no-op when the directory exists (like `mkdir -p`).
		if dir := filepath.Dir(cfg.Storage.DSN); dir != "." && cfg.Storage.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		return sqliteRepo.New(cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// New opens every backend named in cfg, migrates the schema and wires the
// routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	cacheClient, err := cache.New(ctx, cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	if cfg.Insight.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, insight generation will fail")
	}
	generator := insight.Deduplicate(insight.NewGeminiGenerator(insight.GeminiConfig{
		Endpoint: cfg.Insight.Endpoint,
		Model:    cfg.Insight.Model,
		APIKey:   cfg.Insight.APIKey,
		Timeout:  cfg.Insight.Timeout,
	}, logger), cfg.Insight.Timeout)

	deps := Deps{Store: store, Cache: cacheClient, Generator: generator}
	if cfg.AuthEnabled() {
		deps.Provider = auth.NewGitHubProvider(
			cfg.Auth.GitHub.ClientID,
			cfg.Auth.GitHub.ClientSecret,
			cfg.Auth.GitHub.CallbackURL,
			logger,
		)
	} else {
		logger.Warn("JWT_SECRET or GitHub credentials not set, login is disabled")
	}

	s, err := NewWithDeps(cfg, logger, deps)
	if err != nil {
		cacheClient.Close()
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDeps wires the routes on already opened backends.
func NewWithDeps(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     deps.Store,
		cache:     deps.Cache,
		metrics:   metrics.New(),
		directory: auth.NewCacheDirectory(deps.Cache, cfg.Auth.SessionTTL),
	}

	if cfg.Auth.JWTSecret != "" {
		tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("creating token service: %w", err)
		}
		s.tokens = tokens
	}

	s.setupRoutes(deps)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES:
//
//	GET  /                      dashboard (page-cached per subject)
//	GET  /api/onboarding        onboarding status
//	PUT  /api/profile           profile form          (session required)
//	GET  /api/insights          industry insights     (session required)
//	GET  /auth/github/login     start OAuth
//	GET  /auth/github/callback  finish OAuth
//	POST /auth/logout           end session
//	GET  /healthz               backend reachability
//	GET  /metrics               Prometheus scrape
//
// Middleware executes in the order it's added: request id, real IP,
// panic recovery, then request logging and session extraction.
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	if s.tokens != nil {
		s.router.Use(auth.OptionalAuth(s.tokens))
	}

	pageCache := middleware.NewPageCache(deps.Cache, s.config.Cache.PageTTL, s.logger)

	onboardingSvc := service.NewOnboardingService(deps.Store, s.directory, s.metrics, s.logger)
	profileSvc := service.NewProfileService(deps.Store, deps.Generator, pageCache, s.metrics, s.logger)
	insightSvc := service.NewInsightService(deps.Store, deps.Generator, s.metrics, s.logger)

	onboardingHandler := handler.NewOnboardingHandler(onboardingSvc, insightSvc, s.logger)
	profileHandler := handler.NewProfileHandler(profileSvc, s.logger)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"store": deps.Store,
		"cache": deps.Cache,
	}, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.With(pageCache.Middleware).Get("/", onboardingHandler.HandleDashboard)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/onboarding", onboardingHandler.HandleStatus)

		r.Group(func(r chi.Router) {
			if s.tokens != nil {
				r.Use(auth.RequireAuth(s.tokens))
			}
			// Without a token service no request carries a subject and the
			// services answer 401 themselves.
			r.Put("/profile", profileHandler.HandleUpdate)
			r.Get("/insights", onboardingHandler.HandleInsights)
		})
	})

	if deps.Provider != nil && s.tokens != nil {
		authHandler := handler.NewAuthHandler(deps.Provider, s.tokens, s.directory, pageCache, s.config.Auth.SecureCookie, s.logger)
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		s.router.Post("/auth/logout", authHandler.HandleLogout)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests (up to the configured shutdown timeout)
//  3. Close the cache and the database
func (s *Server) Start(ctx context.Context) error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // profile saves may wait on the generator
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("storage", s.config.Storage.Driver),
			slog.String("cache", s.config.Cache.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) close() {
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("closing cache", slog.String("error", err.Error()))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", slog.String("error", err.Error()))
	}
}
