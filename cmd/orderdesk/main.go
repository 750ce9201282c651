// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orderdesk starts the brewery order desk API server.
//
// The server reads a customer message, extracts the requested items,
// checks them against the catalog and answers with a stock summary.
//
// Usage:
//
//	go run ./cmd/orderdesk
//	go run ./cmd/orderdesk -env-file deploy/.env
//
// With a local reasoning model for replies:
//
//	ORDERS_RESPONDER_PROVIDER=ollama ORDERS_RESPONDER_MODEL=deepseek-r1:7b go run ./cmd/orderdesk
//
// Deterministic replies only:
//
//	ORDERS_RESPONDER_PROVIDER=none go run ./cmd/orderdesk
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8088/v1/orders/health
//
//	# Process an order
//	curl -X POST http://localhost:8088/v1/orders/messages \
//	  -H "Content-Type: application/json" -H "X-User-ID: 42" \
//	  -d '{"message_id": "m-1", "text": "2 fûts de jonquille et 3 cartons de pointe"}'
//
//	# Stock listing
//	curl 'http://localhost:8088/v1/orders/stock?product=jonquille' -H "X-User-ID: 42"
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lapaisee/orderdesk/services/orders"
	"github.com/lapaisee/orderdesk/services/orders/bootstrap"
	"github.com/lapaisee/orderdesk/services/orders/catalogsync"
	"github.com/lapaisee/orderdesk/services/orders/config"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/redact"
)

func main() {
	envFile := flag.String("env-file", ".env", "Environment file loaded outside production")
	debug := flag.Bool("debug", false, "Enable gin debug mode and request logging")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("Failed to load environment file", slog.String("error", redact.Error(err)))
		os.Exit(1)
	}
	cfg, err := config.LoadServiceConfig()
	if err != nil {
		slog.Error("Invalid configuration", slog.String("error", redact.Error(err)))
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *debug); err != nil {
		logger.Error("Order desk stopped with error", slog.String("error", redact.Error(err)))
		os.Exit(1)
	}
}

func newLogger(cfg config.ServiceConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func run(cfg config.ServiceConfig, logger *slog.Logger, debug bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lex, err := lexicon.Load()
	if err != nil {
		return err
	}
	if !lex.HasLocale(cfg.Locale) {
		logger.Warn("No phrasebook for locale, using default",
			slog.String("locale", cfg.Locale),
			slog.String("default", lexicon.DefaultLocale))
	}

	cat, err := bootstrap.OpenCatalog(ctx, cfg.Catalog, lex, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	generative, err := bootstrap.NewResponder(cfg.Responder, lex.Phrasebook(cfg.Locale), logger)
	if err != nil {
		logger.Warn("Generative responder not available, using deterministic replies",
			slog.String("provider", cfg.Responder.Provider.Provider),
			slog.String("error", redact.Error(err)))
		generative = nil
	}

	p, err := bootstrap.NewPipeline(cfg, lex, cat.Store, generative, logger)
	if err != nil {
		return err
	}

	syncer, err := bootstrap.NewSyncer(cfg.Sync, lex, cat, logger)
	if err != nil && !errors.Is(err, bootstrap.ErrSyncDisabled) {
		return err
	}

	svcOpts := []orders.ServiceOption{
		orders.WithAccessPolicy(orders.PolicyFromList(cfg.AllowedUsers)),
		orders.WithReloader(bootstrap.Reloader(cat, syncer)),
		orders.WithServiceLogger(logger),
	}
	if cfg.Replies.RedisURL != "" {
		cache, err := orders.NewRedisReplyCache(ctx, cfg.Replies.RedisURL, cfg.Replies.TTL)
		if err != nil {
			logger.Warn("Redis reply cache unavailable, using process memory",
				slog.String("error", redact.Error(err)))
			svcOpts = append(svcOpts, orders.WithReplyCache(orders.NewMemoryReplyCache(cfg.Replies.TTL)))
		} else {
			defer func() { _ = cache.Close() }()
			svcOpts = append(svcOpts, orders.WithReplyCache(cache))
		}
	} else {
		svcOpts = append(svcOpts, orders.WithReplyCache(orders.NewMemoryReplyCache(cfg.Replies.TTL)))
	}
	svc := orders.NewService(p, svcOpts...)

	go loadCatalog(ctx, cat, syncer, svc, logger)

	if cfg.Catalog.Watch {
		stopWatch, err := cat.Watch(ctx)
		if err != nil {
			logger.Warn("Catalog file watcher not started", slog.String("error", redact.Error(err)))
		}
		defer stopWatch()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("orderdesk"))
	if debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	orders.RegisterRoutes(router.Group("/v1"), orders.NewHandlers(svc))

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting order desk server",
			slog.String("address", cfg.HTTPAddr),
			slog.String("catalog_backend", cfg.Catalog.Backend),
			slog.String("responder", responderName(generative != nil, cfg)),
			slog.String("access", svc.Access().String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down order desk server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadCatalog publishes the first snapshot and marks the service ready.
// When the snapshot cannot be loaded and a shop is configured, a sync is
// attempted first.
func loadCatalog(ctx context.Context, cat *bootstrap.Catalog, syncer *catalogsync.Syncer, svc *orders.Service, logger *slog.Logger) {
	start := time.Now()
	n, err := cat.Refresh(ctx)
	if err != nil && syncer != nil {
		logger.Info("Catalog not loadable, running initial sync", slog.String("error", redact.Error(err)))
		n, err = bootstrap.Reloader(cat, syncer)(ctx)
	}
	if err != nil {
		logger.Error("Initial catalog load failed, server stays not ready",
			slog.String("error", redact.Error(err)))
		return
	}
	svc.SetReady(true)
	logger.Info("Catalog ready",
		slog.Int("entries", n),
		slog.Duration("duration", time.Since(start)))
}

func responderName(generative bool, cfg config.ServiceConfig) string {
	if !generative {
		return "deterministic"
	}
	return cfg.Responder.Provider.Provider + "/" + cfg.Responder.Provider.Model
}
