package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bumbayash/blogicum/internal/api"
	"github.com/bumbayash/blogicum/internal/auth"
	"github.com/bumbayash/blogicum/internal/blog"
	"github.com/bumbayash/blogicum/internal/config"
	"github.com/bumbayash/blogicum/internal/log"
	"github.com/bumbayash/blogicum/internal/mail"
	"github.com/bumbayash/blogicum/internal/metrics"
	"github.com/bumbayash/blogicum/internal/repository"
	"github.com/bumbayash/blogicum/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting blogicum API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("blogicum-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Pick the store: Postgres when a DSN is configured, in-memory otherwise.
	var (
		blogStore blog.Store
		pinger    api.Pinger
	)
	if cfg.Database.PostgresDSN != "" {
		pg, err := repository.NewPostgresStore(cfg.Database.PostgresDSN, logger)
		if err != nil {
			logger.Fatalw("Failed to open database", "error", err)
		}
		defer pg.Close()
		if err := pg.Ping(ctx); err != nil {
			logger.Fatalw("Database ping failed", "error", err)
		}
		blogStore, pinger = pg, pg
		logger.Infow("Postgres store initialized")
	} else {
		mem := repository.NewMemoryStore()
		repository.SeedFixtures(mem)
		blogStore = mem
		logger.Infow("In-memory store initialized with fixtures")
	}

	// Setup Redis cache (falls back to in-memory when unreachable)
	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()
	if cache.IsInMemoryMode() {
		logger.Infow("Cache running in in-memory mode")
	} else {
		logger.Infow("Cache connection established", "addr", cfg.Cache.RedisAddr)
	}

	// Setup services
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// Dev-only fallback; Load rejects an empty secret in prod.
		secret = "blogicum-dev-secret"
		logger.Warnw("BLG_JWT_SECRET not set, using dev secret")
	}
	authSvc := auth.NewService(blogStore, secret, cfg.Auth.SessionTTL, logger)
	notifier := mail.NewMailer(cfg.Mail.SMTPAddr, cfg.Mail.SMTPUsername, cfg.Mail.SMTPPassword, cfg.Mail.From, logger, metricsObj)
	blogSvc := blog.NewService(blogStore, cache, notifier, logger, cfg.Blog.PageSize)

	// Setup API handler and middleware
	handler := api.NewHandler(blogSvc, authSvc, logger, pinger)
	middleware := api.NewMiddleware(logger, metricsObj, authSvc)

	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)
	router.Handle("/metrics", metricsHandler)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
