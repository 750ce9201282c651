// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bootstrap assembles the order desk from a ServiceConfig.
//
// Both the server and the command line tool build their catalog, pipeline
// and sync job here so the two never drift apart.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/lapaisee/orderdesk/services/orders/catalog"
	"github.com/lapaisee/orderdesk/services/orders/catalogsync"
	"github.com/lapaisee/orderdesk/services/orders/config"
	"github.com/lapaisee/orderdesk/services/orders/extract"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/match"
	"github.com/lapaisee/orderdesk/services/orders/pipeline"
	"github.com/lapaisee/orderdesk/services/orders/providers"
	"github.com/lapaisee/orderdesk/services/orders/respond"
	"github.com/lapaisee/orderdesk/services/orders/stock"
	badgerstore "github.com/lapaisee/orderdesk/services/orders/storage/badger"
)

// ErrSyncDisabled is returned by NewSyncer when no shop is configured.
var ErrSyncDisabled = errors.New("catalog sync disabled: WOOCOMMERCE_URL not set")

// Catalog is the opened catalog backend.
//
// # Description
//
// Store answers lookups. For the file and postgres backends it is an
// in-process SnapshotStore refreshed from Loader; for weaviate it is the
// remote collection itself and Loader is nil. Sinks lists where a sync
// writes.
//
// # Thread Safety
//
// Safe for concurrent use after OpenCatalog returns. Close once.
type Catalog struct {
	Backend  string
	Store    catalog.Store
	Snapshot *catalog.SnapshotStore
	Loader   catalog.Loader
	File     *catalog.FileStore
	Sinks    []catalogsync.NamedSink

	closers []func()
	logger  *slog.Logger
}

// OpenCatalog connects the configured backend.
//
// # Inputs
//
//   - ctx: Bounds connection checks.
//   - cfg: Catalog section of the service config.
//   - lex: Lexicon used for lexical ranking.
//   - logger: Destination for progress logs. Nil means slog.Default().
//
// # Outputs
//
//   - *Catalog: Ready to Refresh. Nothing is loaded yet.
//   - error: Non-nil if the backend cannot be reached.
func OpenCatalog(ctx context.Context, cfg config.CatalogConfig, lex *lexicon.Lexicon, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{Backend: cfg.Backend, logger: logger}
	if cfg.File != "" {
		c.File = catalog.NewFileStore(cfg.File)
		c.Sinks = append(c.Sinks, catalogsync.NamedSink{Name: config.BackendFile, Sink: c.File})
	}

	var embedder catalog.Embedder
	if cfg.Semantic {
		embedder = catalog.NewOllamaEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
	}

	switch cfg.Backend {
	case config.BackendFile:
		if c.File == nil {
			return nil, fmt.Errorf("file backend requires a catalog file")
		}
		c.Snapshot = catalog.NewSnapshotStore(lex, c.embeddingIndex(cfg, embedder), logger)
		c.Store = c.Snapshot
		c.Loader = c.File

	case config.BackendPostgres:
		pg, err := catalog.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			c.Close()
			return nil, err
		}
		c.Snapshot = catalog.NewSnapshotStore(lex, c.embeddingIndex(cfg, embedder), logger)
		c.Store = c.Snapshot
		c.Loader = pg
		c.Sinks = append(c.Sinks, catalogsync.NamedSink{Name: config.BackendPostgres, Sink: pg})

	case config.BackendWeaviate:
		wv, err := catalog.NewWeaviateStore(catalog.WeaviateConfig{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
			APIKey: cfg.WeaviateAPIKey,
			Class:  cfg.WeaviateClass,
		}, embedder, logger)
		if err != nil {
			return nil, err
		}
		if err := wv.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		c.Store = wv
		c.Sinks = append(c.Sinks, catalogsync.NamedSink{Name: config.BackendWeaviate, Sink: wv})

	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.Backend)
	}

	logger.Info("catalog backend opened",
		slog.String("backend", cfg.Backend),
		slog.Bool("semantic", cfg.Semantic),
		slog.Int("sinks", len(c.Sinks)),
	)
	return c, nil
}

// embeddingIndex builds the index behind a SnapshotStore. The vector cache
// lives in BadgerDB under CacheDir, or in memory when CacheDir is empty.
func (c *Catalog) embeddingIndex(cfg config.CatalogConfig, embedder catalog.Embedder) *catalog.EmbeddingIndex {
	if embedder == nil {
		return nil
	}

	dbCfg := badgerstore.InMemoryConfig()
	if cfg.CacheDir != "" {
		dbCfg = badgerstore.DefaultConfig()
		dbCfg.Path = filepath.Join(cfg.CacheDir, "vectors")
	}
	dbCfg.Logger = c.logger

	var cache catalog.VectorCache
	db, err := badgerstore.OpenDB(dbCfg)
	if err != nil {
		c.logger.Warn("vector cache unavailable, embeddings recomputed on every load",
			slog.String("path", dbCfg.Path),
			slog.String("error", err.Error()),
		)
	} else {
		c.closers = append(c.closers, func() {
			if err := db.Close(); err != nil {
				c.logger.Warn("failed to close vector cache", slog.String("error", err.Error()))
			}
		})
		cache = catalog.NewBadgerVectorCache(db, 0, c.logger)
	}
	return catalog.NewEmbeddingIndex(embedder, cache, c.logger)
}

// Refresh reloads the in-process snapshot and returns its size.
// For the weaviate backend it is a no-op returning -1.
func (c *Catalog) Refresh(ctx context.Context) (int, error) {
	if c.Snapshot == nil || c.Loader == nil {
		return -1, nil
	}
	if err := c.Snapshot.Refresh(ctx, c.Loader); err != nil {
		return 0, err
	}
	return c.Snapshot.Current().Len(), nil
}

// Watch starts a file watcher when the backend is file-based. The returned
// stop function is never nil.
func (c *Catalog) Watch(ctx context.Context) (stop func(), err error) {
	if c.Backend != config.BackendFile || c.File == nil || c.Snapshot == nil {
		return func() {}, nil
	}
	w := catalog.NewWatcher(c.File, c.Snapshot, c.logger)
	if err := w.Start(ctx); err != nil {
		return func() {}, err
	}
	return w.Stop, nil
}

// Close releases backend connections.
func (c *Catalog) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// NewSyncer builds the shop sync job writing to every sink of cat.
func NewSyncer(cfg config.SyncConfig, lex *lexicon.Lexicon, cat *Catalog, logger *slog.Logger) (*catalogsync.Syncer, error) {
	if cfg.WooURL == "" {
		return nil, ErrSyncDisabled
	}
	client, err := catalogsync.NewWooClient(catalogsync.WooConfig{
		URL:            cfg.WooURL,
		ConsumerKey:    cfg.WooKey,
		ConsumerSecret: cfg.WooSecret,
		RateLimit:      cfg.RateLimit,
		Timeout:        cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return catalogsync.NewSyncer(client, lex, cat.Sinks, logger), nil
}

// Reloader returns the catalog reload used by the reload endpoint.
//
// With a syncer the shop is synced first, then the snapshot is refreshed
// from the backend. The count is the number of entries now served.
func Reloader(cat *Catalog, syncer *catalogsync.Syncer) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		synced := -1
		if syncer != nil {
			entries, _, err := syncer.Run(ctx)
			if err != nil {
				return 0, err
			}
			synced = len(entries)
		}
		n, err := cat.Refresh(ctx)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			if synced < 0 {
				return 0, fmt.Errorf("backend %s has no local snapshot and no sync is configured", cat.Backend)
			}
			return synced, nil
		}
		return n, nil
	}
}

// NewResponder builds the generative responder. It returns nil, without
// error, when the provider is "none".
func NewResponder(cfg config.ResponderConfig, pb lexicon.Phrasebook, logger *slog.Logger) (respond.Responder, error) {
	client, err := providers.NewProviderFactory(logger).CreateChatClient(cfg.Provider)
	if errors.Is(err, providers.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return respond.NewGenerative(client, pb,
		respond.WithChatOptions(providers.ChatOptions{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Model:       cfg.Provider.Model,
		}),
		respond.WithGenerativeTimeout(cfg.Timeout),
	), nil
}

// NewPipeline wires extractor, matcher, evaluator and composer over store.
// generative may be nil.
func NewPipeline(cfg config.ServiceConfig, lex *lexicon.Lexicon, store catalog.Store, generative respond.Responder, logger *slog.Logger) (*pipeline.Pipeline, error) {
	patterns, err := lex.CompilePatterns()
	if err != nil {
		return nil, fmt.Errorf("compile item patterns: %w", err)
	}
	pb := lex.Phrasebook(cfg.Locale)
	return pipeline.New(pipeline.Config{
		Extractor: extract.New(lex, patterns, logger),
		Matcher: match.New(store, lex,
			match.WithLimit(cfg.Catalog.MatchLimit),
			match.WithTimeout(cfg.Catalog.MatchTimeout),
			match.WithLogger(logger),
		),
		Evaluator:  stock.NewEvaluator(pb),
		Composer:   respond.NewComposer(pb),
		Generative: generative,
		Logger:     logger,
	})
}
