package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/config"
	"apotekpos/backend/internal/httpapi"
	"apotekpos/backend/internal/logger"
	"apotekpos/backend/internal/service"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/store/memory"
	"apotekpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	log := logger.Must(logger.New())
	defer func() { _ = log.Sync() }()

	if cfg.AuthSecret == "" {
		log.Fatal("AUTH_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo    store.Repository
		closers []func() error
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres connect failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("using postgres store")
	} else {
		repo = memory.NewSeeded()
		log.Warn("DATABASE_URL not set, using seeded in-memory store")
	}

	var metricsCache cache.MetricsCache = cache.NoopMetricsCache{}
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisMetricsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("redis unreachable, dashboard cache disabled", zap.Error(err))
			_ = rc.Close()
		} else {
			metricsCache = rc
			closers = append(closers, rc.Close)
			log.Info("dashboard cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	svc := service.New(
		repo,
		metricsCache,
		time.Duration(cfg.DashboardCacheTTLSeconds)*time.Second,
		cfg.LowStockThreshold,
		logger.Named(log, "service"),
	)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger.Named(log, "http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}

	log.Info("server stopped cleanly")
	if ctx.Err() == nil {
		os.Exit(1)
	}
}
