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
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

// lexicalWeight is the BM25 share of the hybrid score when vectors exist.
const lexicalWeight = 0.4

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is an immutable, indexed view of the catalog.
//
// # Thread Safety
//
// Immutable after BuildSnapshot. Safe for concurrent use.
type Snapshot struct {
	entries  []datatypes.CatalogEntry
	byID     map[string]int
	bm25     *BM25Index
	vectors  [][]float32 // aligned with entries; nil when search is lexical only
	loadedAt time.Time
}

// BuildSnapshot indexes entries. index may be nil for lexical-only search.
//
// # Inputs
//
//   - ctx: Bounds embedding calls.
//   - lex: Tokenizer vocabulary.
//   - entries: Catalog entries. The slice is copied.
//   - index: Optional embedding index.
//
// # Outputs
//
//   - *Snapshot: Never nil.
//   - error: Non-nil only when ctx was cancelled while embedding.
func BuildSnapshot(ctx context.Context, lex *lexicon.Lexicon, entries []datatypes.CatalogEntry, index *EmbeddingIndex) (*Snapshot, error) {
	copied := make([]datatypes.CatalogEntry, len(entries))
	copy(copied, entries)

	docs := make([]string, len(copied))
	byID := make(map[string]int, len(copied))
	for i, e := range copied {
		docs[i] = e.Document()
		byID[e.ID] = i
	}

	snap := &Snapshot{
		entries:  copied,
		byID:     byID,
		bm25:     BuildBM25Index(lex, docs),
		loadedAt: time.Now(),
	}

	if index != nil && len(copied) > 0 {
		vectors, err := index.Vectors(ctx, copied)
		if err != nil {
			return nil, fmt.Errorf("embed catalog: %w", err)
		}
		if len(vectors) > 0 {
			snap.vectors = make([][]float32, len(copied))
			for i, e := range copied {
				snap.vectors[i] = vectors[e.ID]
			}
		}
	}
	return snap, nil
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the entries.
func (s *Snapshot) Entries() []datatypes.CatalogEntry {
	out := make([]datatypes.CatalogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// HasVectors reports whether semantic scoring is available.
func (s *Snapshot) HasVectors() bool {
	return s.vectors != nil
}

// rank scores every entry and returns positions with a positive score, best
// first. Ties keep catalog order.
func (s *Snapshot) rank(query string, queryVec []float32) []int {
	scores := s.bm25.Score(query)
	if queryVec != nil && s.vectors != nil {
		for i := range scores {
			var semantic float64
			if v := s.vectors[i]; v != nil {
				semantic = max(dotProduct(queryVec, v), 0)
			}
			scores[i] = lexicalWeight*scores[i] + (1-lexicalWeight)*semantic
		}
	}

	positions := make([]int, 0, len(scores))
	for i, sc := range scores {
		if sc > 0 {
			positions = append(positions, i)
		}
	}
	sort.SliceStable(positions, func(a, b int) bool {
		return scores[positions[a]] > scores[positions[b]]
	})
	return positions
}

// =============================================================================
// Snapshot Store
// =============================================================================

// SnapshotStore serves lookups from the current Snapshot and swaps in new
// snapshots atomically.
//
// # Description
//
// Each lookup loads the snapshot pointer once, so it sees either the old or
// the new catalog, never a mix. Refresh builds the replacement off to the
// side and publishes it with a single pointer store.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent Refresh calls are serialized by the
// caller's choice of loader; the last to finish wins.
type SnapshotStore struct {
	lex     *lexicon.Lexicon
	index   *EmbeddingIndex
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// NewSnapshotStore creates a store holding an empty snapshot. index may be nil.
func NewSnapshotStore(lex *lexicon.Lexicon, index *EmbeddingIndex, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SnapshotStore{lex: lex, index: index, logger: logger}
	s.current.Store(&Snapshot{byID: map[string]int{}, bm25: BuildBM25Index(lex, nil)})
	return s
}

// Current returns the published snapshot.
func (s *SnapshotStore) Current() *Snapshot {
	return s.current.Load()
}

// Replace publishes snap.
func (s *SnapshotStore) Replace(snap *Snapshot) {
	s.current.Store(snap)
	catalogEntries.Set(float64(snap.Len()))
}

// Refresh loads entries from loader and publishes a new snapshot.
//
// On failure the current snapshot stays in place.
func (s *SnapshotStore) Refresh(ctx context.Context, loader Loader) error {
	start := time.Now()
	entries, err := loader.Load(ctx)
	if err != nil {
		catalogReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("load catalog: %w", err)
	}
	snap, err := BuildSnapshot(ctx, s.lex, entries, s.index)
	if err != nil {
		catalogReloads.WithLabelValues("error").Inc()
		return err
	}
	s.Replace(snap)
	catalogReloads.WithLabelValues("ok").Inc()

	s.logger.Info("catalog snapshot published",
		slog.Int("entries", snap.Len()),
		slog.Bool("semantic", snap.HasVectors()),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// LookupSimilar ranks the current snapshot against query.
//
// Semantic scoring is used when the snapshot has vectors and the query embeds
// in time; otherwise ranking is lexical only. Never returns an error.
func (s *SnapshotStore) LookupSimilar(ctx context.Context, query string, limit int) ([]datatypes.CatalogEntry, error) {
	snap := s.current.Load()
	if snap.Len() == 0 || limit <= 0 {
		return nil, nil
	}

	var queryVec []float32
	if snap.HasVectors() && s.index != nil {
		vec, err := s.index.QueryVector(ctx, query)
		if err != nil {
			s.logger.Warn("catalog: query embedding failed, using lexical ranking",
				slog.String("error", err.Error()),
			)
		} else {
			queryVec = vec
		}
	}

	positions := snap.rank(query, queryVec)
	if len(positions) > limit {
		positions = positions[:limit]
	}
	out := make([]datatypes.CatalogEntry, len(positions))
	for i, p := range positions {
		out[i] = snap.entries[p]
	}
	return out, nil
}

// Get returns the entry with id from the current snapshot.
func (s *SnapshotStore) Get(_ context.Context, id string) (datatypes.CatalogEntry, bool, error) {
	snap := s.current.Load()
	i, ok := snap.byID[id]
	if !ok {
		return datatypes.CatalogEntry{}, false, nil
	}
	return snap.entries[i], true, nil
}

// StaticLoader serves a fixed entry list. Used by the CLI and tests.
type StaticLoader []datatypes.CatalogEntry

// Load returns the entries.
func (l StaticLoader) Load(context.Context) ([]datatypes.CatalogEntry, error) {
	return l, nil
}
