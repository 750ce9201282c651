// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps an embedded BadgerDB used for local caches.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// ErrClosed is returned by transactions on a closed DB.
var ErrClosed = errors.New("badger: database closed")

// Config controls how the database is opened.
type Config struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is the value-log GC period. Zero disables GC.
	GCInterval time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns an on-disk configuration under the user cache dir.
func DefaultConfig() Config {
	path := ""
	if dir, err := os.UserCacheDir(); err == nil {
		path = filepath.Join(dir, "orderdesk", "badger")
	}
	return Config{
		Path:       path,
		GCInterval: 10 * time.Minute,
	}
}

// InMemoryConfig returns a configuration for an in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is a BadgerDB handle with context-aware transaction helpers.
//
// # Thread Safety
//
// Safe for concurrent use. Close must be called exactly once.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger

	closeOnce sync.Once
	stopGC    chan struct{}
	gcDone    chan struct{}
}

// OpenDB opens (or creates) a database.
//
// # Inputs
//
//   - cfg: Open options. Path must be set unless InMemory is true.
//
// # Outputs
//
//   - *DB: The open database.
//   - error: Non-nil if the path is missing or BadgerDB refuses to open.
func OpenDB(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("open badger: path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = dgbadger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithLogger(nil)

	bdb, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	d := &DB{db: bdb, logger: logger}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		d.stopGC = make(chan struct{})
		d.gcDone = make(chan struct{})
		go d.runGC(cfg.GCInterval)
	}
	return d, nil
}

// WithTxn runs fn in a read-write transaction and commits it.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := d.db.Update(fn)
	if errors.Is(err, dgbadger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := d.db.View(fn)
	if errors.Is(err, dgbadger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// Close stops background GC and closes the database.
func (d *DB) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.stopGC != nil {
			close(d.stopGC)
			<-d.gcDone
		}
		err = d.db.Close()
	})
	return err
}

func (d *DB) runGC(interval time.Duration) {
	defer close(d.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopGC:
			return
		case <-ticker.C:
			for {
				if err := d.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, dgbadger.ErrNoRewrite) {
						d.logger.Debug("badger value log GC stopped", slog.String("error", err.Error()))
					}
					break
				}
			}
		}
	}
}
