// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

const createCatalogTable = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	sku               TEXT NOT NULL DEFAULT '',
	stock_quantity    TEXT,
	stock_status      TEXT NOT NULL DEFAULT '',
	format            TEXT NOT NULL DEFAULT '',
	container_type    TEXT NOT NULL DEFAULT 'unknown',
	gamme             TEXT NOT NULL DEFAULT 'unknown',
	price             NUMERIC(12, 2) NOT NULL DEFAULT 0,
	categories        TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	short_description TEXT NOT NULL DEFAULT '',
	last_sync         TIMESTAMPTZ
)`

const selectCatalog = `
SELECT id, name, sku, stock_quantity, stock_status, format, container_type, gamme,
       price::text, categories, description, short_description, last_sync
FROM catalog_entries
ORDER BY name`

const upsertCatalogEntry = `
INSERT INTO catalog_entries
	(id, name, sku, stock_quantity, stock_status, format, container_type, gamme,
	 price, categories, description, short_description, last_sync)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	sku = EXCLUDED.sku,
	stock_quantity = EXCLUDED.stock_quantity,
	stock_status = EXCLUDED.stock_status,
	format = EXCLUDED.format,
	container_type = EXCLUDED.container_type,
	gamme = EXCLUDED.gamme,
	price = EXCLUDED.price,
	categories = EXCLUDED.categories,
	description = EXCLUDED.description,
	short_description = EXCLUDED.short_description,
	last_sync = EXCLUDED.last_sync`

// PostgresStore keeps the catalog in a Postgres table. It is a Loader for
// snapshots and a Sink for the sync job.
//
// # Thread Safety
//
// Safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool and verifies it with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the catalog table if needed.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createCatalogTable); err != nil {
		return fmt.Errorf("create catalog table: %w", err)
	}
	return nil
}

// Load reads every catalog row.
func (p *PostgresStore) Load(ctx context.Context) ([]datatypes.CatalogEntry, error) {
	rows, err := p.pool.Query(ctx, selectCatalog)
	if err != nil {
		catalogBackendErrors.WithLabelValues("postgres", "load").Inc()
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []datatypes.CatalogEntry
	for rows.Next() {
		var (
			e         datatypes.CatalogEntry
			stock     *string
			container string
			line      string
			price     string
			synced    *time.Time
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.SKU, &stock, &e.StockStatus, &e.Format,
			&container, &line, &price, &e.Categories, &e.Description, &e.ShortDescription, &synced); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		if stock != nil {
			e.Stock = datatypes.StockLevel(*stock)
		}
		if synced != nil {
			e.SyncedAt = *synced
		}
		e.ContainerType = datatypes.Container(container)
		e.Line = datatypes.ProductLine(line)
		if d, err := decimal.NewFromString(price); err == nil {
			e.Price = d
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		catalogBackendErrors.WithLabelValues("postgres", "load").Inc()
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return entries, nil
}

// Save upserts entries in one batch.
func (p *PostgresStore) Save(ctx context.Context, entries []datatypes.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		var stock *string
		if !e.Stock.IsAbsent() {
			s := string(e.Stock)
			stock = &s
		}
		var synced *time.Time
		if !e.SyncedAt.IsZero() {
			t := e.SyncedAt
			synced = &t
		}
		batch.Queue(upsertCatalogEntry,
			e.ID, e.Name, e.SKU, stock, e.StockStatus, e.Format,
			string(e.ContainerType), string(e.Line), e.Price.String(),
			e.Categories, e.Description, e.ShortDescription, synced,
		)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()
	for _, e := range entries {
		if _, err := br.Exec(); err != nil {
			catalogBackendErrors.WithLabelValues("postgres", "save").Inc()
			return fmt.Errorf("upsert catalog entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Close releases the pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}
