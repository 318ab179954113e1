package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/nullstore/docdb/cmd/docdb-server/internal/api"
	"github.com/nullstore/docdb/cmd/docdb-server/internal/config"
	"github.com/nullstore/docdb/cmd/docdb-server/internal/middleware"
	"github.com/nullstore/docdb/cmd/docdb-server/internal/registry"
	"github.com/nullstore/docdb/cmd/docdb-server/internal/semaphore"
	"github.com/nullstore/docdb/internal/query"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("http_addr", cfg.HTTPAddr).
		Int("query_concurrency", cfg.QueryConcurrency).
		Msg("starting docdb-server")

	engine := query.NewEngine()
	logger.Info().Msg("query engine initialized")

	execReg := registry.NewManager(cfg.ExecutionIdleTimeout, cfg.MaxOpenExecutions, cfg.MaxExecPerClient)
	defer func() {
		logger.Info().Msg("closing execution registry")
		if err := execReg.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close execution registry")
		}
	}()

	execSem := semaphore.New(cfg.QueryConcurrency)

	handlers := api.NewHandlers(engine, execReg, execSem, logger, cfg.QueryTimeout)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.AuthMiddleware(cfg.APIKey, cfg.JWTSecret, cfg.AuthDisabled))

	r.Post("/query", handlers.QueryHandler())
	r.Get("/cursor/{id}", handlers.CursorHandler())
	r.Post("/count", handlers.CountHandler())
	r.Post("/explain", handlers.ExplainHandler())
	r.Post("/insert", handlers.InsertHandler())
	r.Post("/index", handlers.CreateIndexHandler())
	r.Delete("/index", handlers.DropIndexHandler())
	r.Get("/health", handlers.HealthHandler())

	handler := h2c.NewHandler(r, &http2.Server{})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	srv.SetKeepAlivesEnabled(true)

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening (h2c)")

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			srv.Close()
			return fmt.Errorf("failed to stop server gracefully: %w", err)
		}

		logger.Info().Msg("server stopped gracefully")
	}

	return nil
}

func setupLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Caller().
		Logger()
}
