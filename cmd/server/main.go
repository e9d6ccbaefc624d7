package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"clinicdesk/internal/auth"
	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/config"
	"clinicdesk/internal/db"
	httpapi "clinicdesk/internal/http"
	"clinicdesk/internal/logging"
	"clinicdesk/internal/memstore"
	"clinicdesk/internal/metrics"
	"clinicdesk/internal/notify"
	"clinicdesk/internal/reporting"
	"clinicdesk/internal/repository"
	"clinicdesk/internal/service"
	"clinicdesk/internal/transcribe"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	feed, err := openFeed(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = feed.Close() }()

	m := metrics.New(cfg.MetricsPrefix)
	opts := []service.Option{service.WithMetrics(m)}
	if cfg.JWTSigningKey != "" {
		opts = append(opts, service.WithTokens(auth.NewTokens(cfg.JWTSigningKey, cfg.JWTExpiration)))
	} else {
		logger.Warn("JWT_SIGNING_KEY is not set, tokens will not survive a restart")
	}
	if cfg.OpenAIAPIKey != "" {
		dictator, err := transcribe.New(transcribe.Options{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			TranscribeModel: cfg.TranscribeModel,
			StructureModel:  cfg.StructureModel,
		}, logger.Named("transcribe"))
		if err != nil {
			return err
		}
		opts = append(opts, service.WithDictator(dictator))
	} else {
		logger.Info("OPENAI_API_KEY is not set, prescription dictation is disabled")
	}

	svc := service.New(store, feed, logger.Named("service"), opts...)
	if err := svc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("default admin: %w", err)
	}

	dashboard := reporting.NewDashboard(store, m, logger.Named("dashboard"))
	go dashboard.Run(ctx, feed)

	if cfg.RelayURL != "" {
		worker := notify.NewWorker(store, notify.NewRelay(cfg.RelayURL, cfg.RelayAPIKey, nil), notify.Config{
			PollInterval: cfg.OutboxPollInterval,
			MaxAttempts:  cfg.OutboxMaxAttempts,
		}, logger.Named("outbox"), m)
		go worker.Run(ctx)
	} else {
		logger.Info("RELAY_URL is not set, notifications stay queued")
	}

	handler := httpapi.NewHandler(svc, dashboard, httpapi.Options{
		Metrics:      m,
		Logger:       logger,
		AllowOrigins: cfg.AllowOrigins,
	})
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("clinicdesk listening", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Warn("force close failed", zap.Error(closeErr))
		}
	}
	return nil
}

// openStore connects to PostgreSQL when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (service.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is not set, using the in-memory store")
		return memstore.New(), func() {}, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns, Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, logger.Named("migrate")); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return repository.New(pool), pool.Close, nil
}

func openFeed(cfg config.Config, logger *zap.Logger) (changefeed.Feed, error) {
	if cfg.NATSURL == "" {
		return changefeed.NewLocal(), nil
	}
	feed, err := changefeed.NewNATS(cfg.NATSURL, logger.Named("changefeed"))
	if err != nil {
		return nil, err
	}
	return feed, nil
}
