package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"pulseboard/pkg/backend"
	"pulseboard/pkg/config"
	apperrors "pulseboard/pkg/errors"
	"pulseboard/pkg/http/handlers"
	"pulseboard/pkg/logging"
	"pulseboard/pkg/metrics"
	"pulseboard/pkg/services"
	"pulseboard/pkg/websocket"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("pulseboard starting",
		zap.String("version", Version),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	normalizer := services.NewNormalizer()
	analytics := services.NewActivityAnalyticsService(cfg.Aggregation.WindowDays)
	fetcher := services.NewFetchService(client, client, logger, m,
		cfg.Aggregation.MaxRecords, cfg.Aggregation.PageSize, cfg.Aggregation.FetchParallel)
	snapshots := services.NewSnapshotService(fetcher, normalizer, analytics, logger, m)

	hub := websocket.NewHub(logger, m.LiveClients)
	defer hub.Stop()

	feed := services.NewRecentFeed(cfg.Aggregation.RecentFeedSize)
	poller := services.NewRecentActivityPoller(client, normalizer, logger, m,
		cfg.Poller.Interval, cfg.Poller.BatchSize, feed, hub)

	errHandler := apperrors.NewHandler(logger)

	router := handlers.NewRouter(handlers.Deps{
		Analytics:  handlers.NewAnalyticsHandlers(snapshots, analytics, client, errHandler, logger),
		Activity:   handlers.NewActivityHandlers(feed, client, normalizer, errHandler),
		Export:     handlers.NewExportHandlers(snapshots, errHandler),
		Health:     handlers.NewHealthHandler(Version),
		LiveFeed:   hub.ServeWS,
		ErrHandler: errHandler,
		Logger:     logger,
		Registry:   registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller.Start(ctx)
	defer poller.Stop()

	// Warm the snapshot in the background so the first dashboard load has
	// data without blocking startup.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if _, err := snapshots.Refresh(warmCtx); err != nil {
			logger.Warn("initial snapshot refresh failed", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr()))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
