// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders/catalog"
	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/extract"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/match"
	"github.com/lapaisee/orderdesk/services/orders/pipeline"
	"github.com/lapaisee/orderdesk/services/orders/respond"
	"github.com/lapaisee/orderdesk/services/orders/stock"
)

// =============================================================================
// Helpers
// =============================================================================

func testCatalog() []datatypes.CatalogEntry {
	return []datatypes.CatalogEntry{
		{ID: "1", Name: "Daffodil Fût 20L", Format: "fût 20L", ContainerType: datatypes.ContainerKeg, Stock: datatypes.StockOf(10), Price: decimal.RequireFromString("180")},
		{ID: "2", Name: "Daffodil Can 44cl", Format: "canette 44cl", ContainerType: datatypes.ContainerCan, Stock: datatypes.StockOf(5), Price: decimal.RequireFromString("3.5")},
		{ID: "3", Name: "Spearhead Carton 12x", Format: "carton 12 canettes 44cl", ContainerType: datatypes.ContainerCarton, Stock: datatypes.StockOf(0), Price: decimal.RequireFromString("42")},
	}
}

func testPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	lex := lexicon.MustLoad()
	snap := catalog.NewSnapshotStore(lex, nil, nil)
	require.NoError(t, snap.Refresh(context.Background(), catalog.StaticLoader(testCatalog())))

	pb := lex.Phrasebook("fr")
	p, err := pipeline.New(pipeline.Config{
		Extractor: extract.NewDefault(),
		Matcher:   match.New(snap, lex),
		Evaluator: stock.NewEvaluator(pb),
		Composer:  respond.NewComposer(pb),
	})
	require.NoError(t, err)
	return p
}

// flakyCache fails Begin or Complete on demand.
type flakyCache struct {
	beginErr    error
	completeErr error
	abandoned   []string
}

func (f *flakyCache) Begin(context.Context, string) (pipeline.Result, bool, error) {
	return pipeline.Result{}, false, f.beginErr
}

func (f *flakyCache) Complete(context.Context, string, pipeline.Result) error {
	return f.completeErr
}

func (f *flakyCache) Abandon(_ context.Context, id string) error {
	f.abandoned = append(f.abandoned, id)
	return nil
}

// =============================================================================
// ProcessMessage
// =============================================================================

func TestProcessMessage_ReplaysSameID(t *testing.T) {
	svc := NewService(testPipeline(t))
	ctx := context.Background()

	first, replayed, err := svc.ProcessMessage(ctx, "m1", "2 fûts de daffodil")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := svc.ProcessMessage(ctx, "m1", "ignored on replay")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.Reply, second.Reply)
}

func TestProcessMessage_EmptyIDNeverReplays(t *testing.T) {
	svc := NewService(testPipeline(t))
	for i := 0; i < 2; i++ {
		_, replayed, err := svc.ProcessMessage(context.Background(), "", "2 fûts de daffodil")
		require.NoError(t, err)
		assert.False(t, replayed)
	}
}

func TestProcessMessage_CacheFailureStillReplies(t *testing.T) {
	svc := NewService(testPipeline(t), WithReplyCache(&flakyCache{beginErr: errors.New("redis down")}))

	res, replayed, err := svc.ProcessMessage(context.Background(), "m1", "2 fûts de daffodil")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, res.Understood)
}

func TestProcessMessage_FailedStoreAbandonsClaim(t *testing.T) {
	cache := &flakyCache{completeErr: errors.New("redis down")}
	svc := NewService(testPipeline(t), WithReplyCache(cache))

	_, _, err := svc.ProcessMessage(context.Background(), "m1", "2 fûts de daffodil")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, cache.abandoned)
}

// panickingStore panics on every lookup.
type panickingStore struct{}

func (panickingStore) LookupSimilar(context.Context, string, int) ([]datatypes.CatalogEntry, error) {
	panic("index corrupted")
}

func (panickingStore) Get(context.Context, string) (datatypes.CatalogEntry, bool, error) {
	panic("index corrupted")
}

func TestProcessMessage_PanicReleasesClaim(t *testing.T) {
	lex := lexicon.MustLoad()
	pb := lex.Phrasebook("fr")
	broken, err := pipeline.New(pipeline.Config{
		Extractor: extract.NewDefault(),
		Matcher:   match.New(panickingStore{}, lex),
		Evaluator: stock.NewEvaluator(pb),
		Composer:  respond.NewComposer(pb),
	})
	require.NoError(t, err)

	cache := NewMemoryReplyCache(0)
	svc := NewService(broken, WithReplyCache(cache))
	assert.Panics(t, func() {
		_, _, _ = svc.ProcessMessage(context.Background(), "m1", "2 fûts de daffodil")
	})
	assert.Equal(t, 0, cache.Len())

	retry := NewService(testPipeline(t), WithReplyCache(cache))
	res, replayed, err := retry.ProcessMessage(context.Background(), "m1", "2 fûts de daffodil")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, res.Understood)
}

func TestProcessMessage_StoredReplyKeepsClaim(t *testing.T) {
	cache := &flakyCache{}
	svc := NewService(testPipeline(t), WithReplyCache(cache))

	_, _, err := svc.ProcessMessage(context.Background(), "m1", "2 fûts de daffodil")
	require.NoError(t, err)
	assert.Empty(t, cache.abandoned)
}

func TestProcessMessage_DuplicateInFlight(t *testing.T) {
	cache := NewMemoryReplyCache(0)
	_, _, err := cache.Begin(context.Background(), "m1")
	require.NoError(t, err)

	svc := NewService(testPipeline(t), WithReplyCache(cache))
	_, _, err = svc.ProcessMessage(context.Background(), "m1", "2 fûts de daffodil")
	assert.ErrorIs(t, err, ErrDuplicateInFlight)
}

func TestProcessMessage_ConcurrentDistinctIDs(t *testing.T) {
	svc := NewService(testPipeline(t))
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := svc.ProcessMessage(context.Background(), id, "1 canette de daffodil")
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

// =============================================================================
// Reload / readiness
// =============================================================================

func TestReload(t *testing.T) {
	p := testPipeline(t)

	_, err := NewService(p).Reload(context.Background())
	assert.ErrorIs(t, err, ErrReloadUnsupported)

	svc := NewService(p, WithReloader(func(context.Context) (int, error) { return 3, nil }))
	n, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	boom := errors.New("woocommerce down")
	svc = NewService(p, WithReloader(func(context.Context) (int, error) { return 0, boom }))
	_, err = svc.Reload(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestReadiness(t *testing.T) {
	svc := NewService(testPipeline(t))
	assert.False(t, svc.IsReady())
	svc.SetReady(true)
	assert.True(t, svc.IsReady())
}
