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
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/lapaisee/orderdesk/services/orders/storage/badger"
)

// vectorCacheDefaultTTL expires cached catalog vectors after a week.
const vectorCacheDefaultTTL = 7 * 24 * time.Hour

const vectorCacheKeyPrefix = "catalog/emb/v1/"

var errCacheMiss = errors.New("cache miss")

// VectorCache persists catalog vectors between restarts.
//
// Load returns (nil, nil) on a miss.
type VectorCache interface {
	Load(ctx context.Context, corpusHash string) (map[string][]float32, error)
	Save(ctx context.Context, corpusHash string, vectors map[string][]float32) error
}

// BadgerVectorCache stores gob-encoded vectors in BadgerDB with a TTL.
//
// # Thread Safety
//
// Safe for concurrent use.
type BadgerVectorCache struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerVectorCache creates a cache. A zero ttl uses one week.
func NewBadgerVectorCache(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerVectorCache {
	if db == nil {
		panic("NewBadgerVectorCache: db must not be nil")
	}
	if ttl <= 0 {
		ttl = vectorCacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerVectorCache{db: db, ttl: ttl, logger: logger}
}

// Load reads the vectors stored under corpusHash.
func (c *BadgerVectorCache) Load(ctx context.Context, corpusHash string) (map[string][]float32, error) {
	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(vectorCacheKey(corpusHash))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})
	if errors.Is(err, errCacheMiss) {
		c.logger.Debug("vector cache: miss", slog.String("hash", shortHash(corpusHash)))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector cache load: %w", err)
	}

	var vectors map[string][]float32
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("vector cache decode: %w", err)
	}
	return vectors, nil
}

// Save stores vectors under corpusHash. An empty map is not stored.
func (c *BadgerVectorCache) Save(ctx context.Context, corpusHash string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vectors); err != nil {
		return fmt.Errorf("vector cache encode: %w", err)
	}

	err := c.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry(vectorCacheKey(corpusHash), buf.Bytes()).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("vector cache save: %w", err)
	}
	c.logger.Debug("vector cache: saved",
		slog.String("hash", shortHash(corpusHash)),
		slog.Int("entries", len(vectors)),
	)
	return nil
}

func vectorCacheKey(corpusHash string) []byte {
	return []byte(vectorCacheKeyPrefix + corpusHash)
}
