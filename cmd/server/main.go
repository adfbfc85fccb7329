// Package main runs the reading-platform API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/bookcircle/bookcircle/internal/adapters/aichat"
	"github.com/bookcircle/bookcircle/internal/adapters/googlebooks"
	"github.com/bookcircle/bookcircle/internal/adapters/streamchat"
	"github.com/bookcircle/bookcircle/internal/app"
	"github.com/bookcircle/bookcircle/internal/app/httpapi"
	"github.com/bookcircle/bookcircle/internal/app/storage/postgres"
	"github.com/bookcircle/bookcircle/internal/auth"
	"github.com/bookcircle/bookcircle/internal/config"
	"github.com/bookcircle/bookcircle/internal/metrics"
	"github.com/bookcircle/bookcircle/internal/middleware"
	"github.com/bookcircle/bookcircle/internal/platform/migrations"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Name:   "server",
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("Database migrations applied")

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	store := postgres.New(db)

	catalog := googlebooks.New(googlebooks.Config{
		BaseURL: cfg.Books.BaseURL,
		Timeout: cfg.Books.Timeout,
	})

	var chatProvider *streamchat.Client
	if cfg.Chat.APIKey != "" && cfg.Chat.APISecret != "" {
		chatProvider, err = streamchat.New(streamchat.Config{
			APIKey:    cfg.Chat.APIKey,
			APISecret: cfg.Chat.APISecret,
			BaseURL:   cfg.Chat.BaseURL,
			Timeout:   cfg.Chat.Timeout,
		})
		if err != nil {
			return fmt.Errorf("chat provider: %w", err)
		}
	} else {
		log.Warn("STREAM_API_KEY not set; chat features disabled")
	}

	streamer := aichat.New(aichat.Config{
		BaseURL:        cfg.AI.BaseURL,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		ConnectTimeout: cfg.AI.Timeout,
	})
	if cfg.AI.APIKey == "" {
		log.Warn("AI_API_KEY not set; assistant requests will fail upstream")
	}

	adapters := app.Adapters{
		Catalog:   catalog,
		Surprises: catalog,
		Streamer:  streamer,
	}
	if chatProvider != nil {
		adapters.Chat = chatProvider
	}

	application, err := app.New(app.Stores{
		Users:   store,
		Books:   store,
		Library: store,
		Top3:    store,
		Events:  store,
	}, adapters, tokens, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	m := metrics.New("bookcircle")

	router := mux.NewRouter()
	router.Use(middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins).Handler)
	router.Use(middleware.NewMetricsMiddleware(m, log).Handler)
	router.Use(middleware.NewRateLimiter(50, 100).Handler)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	handler := httpapi.New(application.Users, application.Library, application.Events, application.Books, application.Chat, application.AI, log)
	authMW := middleware.NewAuthMiddleware(tokens, log)
	handler.Register(router, authMW.Handler)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays unset so the assistant SSE stream is not cut off.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
