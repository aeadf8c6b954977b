// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New opens the store and the bucket, builds
// services and handlers on top of them, and wires everything to routes.
// Handlers never see the repository; services never see HTTP.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/cliplet/internal/auth"
	"github.com/sakif/cliplet/internal/config"
	"github.com/sakif/cliplet/internal/handler"
	"github.com/sakif/cliplet/internal/job"
	"github.com/sakif/cliplet/internal/metrics"
	"github.com/sakif/cliplet/internal/middleware"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/repository"
	"github.com/sakif/cliplet/internal/repository/postgres"
	sqliteRepo "github.com/sakif/cliplet/internal/repository/sqlite"
	"github.com/sakif/cliplet/internal/service"
	"github.com/sakif/cliplet/internal/storage"
)

const (
	signInPath      = "/auth/sign-in"
	shutdownTimeout = 30 * time.Second
)

// Server represents the HTTP server and all its dependencies. It owns the
// store and closes it on shutdown.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	store     repository.Store
	bucket    storage.Bucket
	metrics   *metrics.Metrics
	scheduler *job.Scheduler
}

// New opens the database and the bucket described by cfg and builds the
// server on top of them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	bucket, err := storage.New(ctx, storage.Config{
		Driver:          storage.Driver(cfg.Storage.Driver),
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		PublicURL:       cfg.Storage.PublicURL,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening bucket: %w", err)
	}

	s, err := NewWithDeps(cfg, store, bucket, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDeps builds the server around an already opened store and bucket.
// The server takes ownership of store.
func NewWithDeps(cfg *config.Config, store repository.Store, bucket storage.Bucket, logger *slog.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     store,
		bucket:    bucket,
		metrics:   metrics.New(registry),
		scheduler: job.NewScheduler(logger),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	sweep := job.NewOrphanSweepJob(bucket, store, cfg.OrphanSweepGrace, s.metrics, logger.With(slog.String("job", "orphan-sweep")))
	if err := s.scheduler.Register("orphan-sweep", cfg.OrphanSweepSchedule, sweep); err != nil {
		return nil, err
	}

	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.UsesPostgres() {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	path := cfg.SQLitePath()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// providers returns the OAuth providers that have credentials configured.
func (s *Server) providers() []auth.Provider {
	var out []auth.Provider
	if gh := s.config.GitHub; gh.Enabled() {
		out = append(out, auth.NewGitHubProvider(gh.ClientID, gh.ClientSecret, gh.RedirectURI))
	}
	if g := s.config.Google; g.Enabled() {
		out = append(out, auth.NewGoogleProvider(g.ClientID, g.ClientSecret, g.RedirectURI))
	}
	return out
}

// setupRoutes configures all middleware and route handlers.
//
//	GET    /auth/sign-in                  sign-in page
//	GET    /                              clipboard page (session required)
//	GET    /api/auth/{provider}           start OAuth
//	GET    /api/auth/{provider}/callback  finish OAuth, set auth_token
//	POST   /api/auth/logout               clear auth_token
//	GET    /api/me                        current user
//	GET    /api/clips                     list (?filter=&sort=)
//	POST   /api/clips                     create
//	POST   /api/clips/upload-url          presigned PUT URL
//	GET    /api/clips/{id}                detail
//	DELETE /api/clips/{id}                delete
//	GET    /api/clips/{id}/download       stream the object
//	GET    /metrics, /healthz             operations
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}

	providers := s.providers()
	if len(providers) == 0 {
		s.logger.Warn("no OAuth provider configured, sign-in is unavailable")
	}
	enabled := make([]model.Provider, 0, len(providers))
	for _, p := range providers {
		enabled = append(enabled, p.Name())
	}

	authService := service.NewAuthService(s.store, tokens, s.logger, providers...)
	clipService := service.NewClipService(s.store, s.bucket, s.metrics, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.config.CookieSecure, s.logger)
	clipHandler := handler.NewClipHandler(clipService, s.logger)
	pageHandler, err := handler.NewPageHandler(authService, clipService, enabled, s.config.CookieSecure, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	// === Operations ===
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", s.metrics.Handler())

	// === Pages ===
	s.router.With(auth.OptionalAuth(tokens)).Get(signInPath, pageHandler.HandleSignIn)
	s.router.With(auth.RequireAuthRedirect(tokens, signInPath)).Get("/", auth.WithUser(pageHandler.HandleHome))

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		if rl := s.config.RateLimit; rl.Requests > 0 {
			r.Use(middleware.RateLimit(middleware.NewIPRateLimiter(rl.Requests, rl.Window, rl.Burst, 10*time.Minute)))
		}

		r.Get("/auth/{provider}", authHandler.HandleLogin)
		r.Get("/auth/{provider}/callback", authHandler.HandleCallback)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", auth.WithUser(authHandler.HandleMe))

			r.Route("/clips", func(r chi.Router) {
				r.Get("/", auth.WithUser(clipHandler.HandleList))
				r.Post("/", auth.WithUser(clipHandler.HandleCreate))
				r.Post("/upload-url", auth.WithUser(clipHandler.HandleUploadURL))
				r.Get("/{id}", auth.WithUserAndID("id", clipHandler.HandleGet))
				r.Delete("/{id}", auth.WithUserAndID("id", clipHandler.HandleDelete))
				r.Get("/{id}/download", auth.WithUserAndID("id", clipHandler.HandleDownload))
			})
		})
	})

	return nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves HTTP and runs the job scheduler until ctx is cancelled, then
// shuts both down gracefully and closes the store.
//
// Downloads stream whole objects, so WriteTimeout is generous.
func (s *Server) Start(ctx context.Context) error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.Bool("postgres", s.config.UsesPostgres()),
			slog.String("storage", s.config.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
