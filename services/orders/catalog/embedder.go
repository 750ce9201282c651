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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// =============================================================================
// Embedder
// =============================================================================

// DefaultEmbeddingURL is the Ollama embed endpoint used when none is configured.
const DefaultEmbeddingURL = "http://localhost:11434/api/embed"

// DefaultEmbeddingModel is the embedding model used when none is configured.
const DefaultEmbeddingModel = "nomic-embed-text-v2-moe"

// embedWarmConcurrency bounds parallel embed calls while indexing a catalog.
const embedWarmConcurrency = 10

// embedQueryTimeout bounds the per-query embed call on the lookup path.
const embedQueryTimeout = 3 * time.Second

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

type ollamaEmbedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaEmbedder calls an Ollama /api/embed endpoint.
//
// # Thread Safety
//
// Safe for concurrent use.
type OllamaEmbedder struct {
	url    string
	model  string
	client *http.Client
}

// NewOllamaEmbedder creates an embedder. Empty arguments use the defaults.
func NewOllamaEmbedder(url, model string) *OllamaEmbedder {
	if url == "" {
		url = DefaultEmbeddingURL
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OllamaEmbedder{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string {
	return e.model
}

// Embed returns the embedding of text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedReq{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed service returned %d: %s", resp.StatusCode, string(body))
	}

	var out ollamaEmbedResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse embed response: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed service returned empty vector")
	}
	return out.Embeddings[0], nil
}

// =============================================================================
// Embedding Index
// =============================================================================

// EmbeddingIndex computes unit-normalized vectors for catalog entries.
//
// # Description
//
// Vectors for a whole catalog are computed in parallel (bounded by
// embedWarmConcurrency) and persisted through an optional VectorCache keyed
// by a hash of every entry document plus the model name. Any change to the
// catalog text or the model produces a new key, so stale vectors are never
// served. Entries that fail to embed get no vector and score 0 on the
// semantic side. If every entry fails, no vectors are returned and search
// is purely lexical.
//
// # Thread Safety
//
// Safe for concurrent use.
type EmbeddingIndex struct {
	embedder Embedder
	cache    VectorCache
	logger   *slog.Logger
}

// NewEmbeddingIndex creates an index. cache may be nil.
func NewEmbeddingIndex(embedder Embedder, cache VectorCache, logger *slog.Logger) *EmbeddingIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingIndex{embedder: embedder, cache: cache, logger: logger}
}

// Vectors returns one unit vector per entry ID that embedded successfully.
//
// # Outputs
//
//   - map[string][]float32: Entry ID to unit vector. Nil when nothing embedded.
//   - error: Non-nil only when ctx was cancelled.
func (x *EmbeddingIndex) Vectors(ctx context.Context, entries []datatypes.CatalogEntry) (map[string][]float32, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	corpusHash := computeCorpusHash(entries, x.embedder.Model())
	if x.cache != nil {
		cached, err := x.cache.Load(ctx, corpusHash)
		if err != nil {
			x.logger.Warn("embedding cache: load failed, re-embedding catalog",
				slog.String("error", err.Error()),
			)
		} else if len(cached) > 0 {
			x.logger.Info("embedding cache: hit",
				slog.Int("entries", len(cached)),
				slog.String("corpus_hash", shortHash(corpusHash)),
			)
			return cached, nil
		}
	}

	var mu sync.Mutex
	vectors := make(map[string][]float32, len(entries))
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWarmConcurrency)
	for _, e := range entries {
		g.Go(func() error {
			vec, err := x.embedder.Embed(gctx, e.Document())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				x.logger.Debug("embedding failed for catalog entry",
					slog.String("id", e.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if unit := normalize(vec); unit != nil {
				vectors[e.ID] = unit
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if failed > 0 {
		x.logger.Warn("embedding: some catalog entries could not be embedded",
			slog.Int("failed", failed),
			slog.Int("total", len(entries)),
		)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	if x.cache != nil {
		if err := x.cache.Save(ctx, corpusHash, vectors); err != nil {
			x.logger.Warn("embedding cache: save failed", slog.String("error", err.Error()))
		}
	}
	return vectors, nil
}

// QueryVector embeds a query under embedQueryTimeout and unit-normalizes it.
func (x *EmbeddingIndex) QueryVector(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedQueryTimeout)
	defer cancel()

	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	unit := normalize(vec)
	if unit == nil {
		return nil, fmt.Errorf("query embedding has zero norm")
	}
	return unit, nil
}

// =============================================================================
// Helpers
// =============================================================================

// computeCorpusHash hashes every entry document (sorted by ID) and the model.
func computeCorpusHash(entries []datatypes.CatalogEntry, model string) string {
	sorted := make([]datatypes.CatalogEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, e := range sorted {
		fmt.Fprintf(h, "%s\t%s\n", e.ID, e.Document())
	}
	fmt.Fprintf(h, "model=%s\n", model)
	return hex.EncodeToString(h.Sum(nil))
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8] + "..."
	}
	return h
}

// normalize returns v scaled to unit length, or nil for a zero vector.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// dotProduct of two vectors; mismatched lengths use the shorter.
func dotProduct(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
