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
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

// =============================================================================
// Helpers
// =============================================================================

func testEntries() []datatypes.CatalogEntry {
	return []datatypes.CatalogEntry{
		{ID: "1", Name: "Daffodil Can 44cl", Format: "canette 44cl", ContainerType: datatypes.ContainerCan, Line: datatypes.LineClean, Stock: datatypes.StockOf(5)},
		{ID: "2", Name: "Daffodil Fût 20L", Format: "fût 20L", ContainerType: datatypes.ContainerKeg, Line: datatypes.LineClean, Stock: datatypes.StockOf(2)},
		{ID: "3", Name: "Spearhead Carton 12x", Format: "carton 12 canettes 44cl", ContainerType: datatypes.ContainerCarton, Line: datatypes.LineClean, Stock: datatypes.StockOf(0)},
		{ID: "4", Name: "Wild Gueuze 75cl", Format: "bouteille 75cl", ContainerType: datatypes.ContainerBottle, Line: datatypes.LineWild, Stock: datatypes.StockOf(10)},
	}
}

func newTestStore(t *testing.T, index *EmbeddingIndex) *SnapshotStore {
	t.Helper()
	store := NewSnapshotStore(lexicon.MustLoad(), index, nil)
	require.NoError(t, store.Refresh(context.Background(), StaticLoader(testEntries())))
	return store
}

func names(entries []datatypes.CatalogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// fakeEmbedder maps known words to fixed axes.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeEmbedder) Model() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("embedder down")
	}
	v := make([]float32, 3)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "daffodil") || strings.Contains(lower, "jonquille") {
		v[0] = 1
	}
	if strings.Contains(lower, "spearhead") || strings.Contains(lower, "pointe") {
		v[1] = 1
	}
	if strings.Contains(lower, "gueuze") || strings.Contains(lower, "wild") {
		v[2] = 1
	}
	return v, nil
}

// =============================================================================
// Lexical lookup
// =============================================================================

func TestSnapshotStore_LookupSimilar_Lexical(t *testing.T) {
	store := newTestStore(t, nil)

	got, err := store.LookupSimilar(context.Background(), "daffodil", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Daffodil Can 44cl", "Daffodil Fût 20L"}, names(got))

	got, err = store.LookupSimilar(context.Background(), "spearhead carton 12x", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Spearhead Carton 12x", got[0].Name)
}

func TestSnapshotStore_LookupSimilar_KegSuffixRanksKegFirst(t *testing.T) {
	store := newTestStore(t, nil)

	got, err := store.LookupSimilar(context.Background(), "daffodil fût", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Daffodil Fût 20L", got[0].Name)
}

func TestSnapshotStore_LookupSimilar_NoOverlap(t *testing.T) {
	store := newTestStore(t, nil)
	got, err := store.LookupSimilar(context.Background(), "mystery brew", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotStore_LookupSimilar_Limit(t *testing.T) {
	store := newTestStore(t, nil)
	got, err := store.LookupSimilar(context.Background(), "daffodil", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = store.LookupSimilar(context.Background(), "daffodil", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotStore_EmptyStore(t *testing.T) {
	store := NewSnapshotStore(lexicon.MustLoad(), nil, nil)
	got, err := store.LookupSimilar(context.Background(), "daffodil", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, ok, err := store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotStore_Get(t *testing.T) {
	store := newTestStore(t, nil)
	e, ok, err := store.Get(context.Background(), "3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Spearhead Carton 12x", e.Name)
}

// =============================================================================
// Refresh
// =============================================================================

type failingLoader struct{}

func (failingLoader) Load(context.Context) ([]datatypes.CatalogEntry, error) {
	return nil, errors.New("source down")
}

func TestSnapshotStore_RefreshFailureKeepsSnapshot(t *testing.T) {
	store := newTestStore(t, nil)
	before := store.Current()

	err := store.Refresh(context.Background(), failingLoader{})
	require.Error(t, err)
	assert.Same(t, before, store.Current())
}

func TestSnapshotStore_ConcurrentLookupDuringRefresh(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := store.LookupSimilar(ctx, "daffodil", 5)
				if err != nil {
					t.Error(err)
					return
				}
				// Either snapshot has exactly two daffodil entries.
				if len(got) != 2 {
					t.Errorf("got %d entries mid-refresh", len(got))
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, store.Refresh(ctx, StaticLoader(testEntries())))
	}
	wg.Wait()
}

// =============================================================================
// Hybrid lookup
// =============================================================================

func TestSnapshotStore_SemanticMatchesTranslation(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newTestStore(t, NewEmbeddingIndex(emb, nil, nil))
	require.True(t, store.Current().HasVectors())

	// "jonquille" shares no token with the English catalog but embeds close
	// to the daffodil entries.
	got, err := store.LookupSimilar(context.Background(), "jonquille", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Daffodil Can 44cl", "Daffodil Fût 20L"}, names(got))
}

func TestSnapshotStore_EmbedderDownFallsBackToLexical(t *testing.T) {
	emb := &fakeEmbedder{fail: true}
	store := newTestStore(t, NewEmbeddingIndex(emb, nil, nil))
	assert.False(t, store.Current().HasVectors())

	got, err := store.LookupSimilar(context.Background(), "spearhead", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Spearhead Carton 12x"}, names(got))
}
