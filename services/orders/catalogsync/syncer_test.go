// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalogsync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders/catalog"
	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

type staticSource struct {
	products []Product
	err      error
}

func (s staticSource) FetchAll(context.Context) ([]Product, error) {
	return s.products, s.err
}

type recordingSink struct {
	saved []datatypes.CatalogEntry
	err   error
}

func (r *recordingSink) Save(_ context.Context, entries []datatypes.CatalogEntry) error {
	r.saved = entries
	return r.err
}

func TestSyncer_WritesEverySink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	file := catalog.NewFileStore(path)
	mem := &recordingSink{}

	src := staticSource{products: []Product{
		{ID: 1, Name: "Jonquille Fût 20L", Price: "180", StockQuantity: datatypes.StockOf(4)},
		{ID: 2, Name: "Gueuze 75cl", Price: "12.5", StockQuantity: datatypes.StockOf(30)},
	}}
	s := NewSyncer(src, lexicon.MustLoad(), []NamedSink{{Name: "file", Sink: file}, {Name: "memory", Sink: mem}}, nil)
	stamp := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	entries, report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Products)
	assert.Equal(t, []string{"file", "memory"}, report.Sinks)
	assert.Empty(t, report.Failed)
	require.Len(t, entries, 2)
	assert.Equal(t, stamp, entries[0].SyncedAt)
	assert.Len(t, mem.saved, 2)

	loaded, err := file.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "fût 20L", loaded[0].Format)
	assert.Equal(t, datatypes.LineWild, loaded[1].Line)
}

func TestSyncer_FetchErrorTouchesNoSink(t *testing.T) {
	mem := &recordingSink{}
	s := NewSyncer(staticSource{err: errors.New("503")}, lexicon.MustLoad(), []NamedSink{{Name: "memory", Sink: mem}}, nil)

	_, _, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, mem.saved)
}

func TestSyncer_SinkErrorStillWritesOthers(t *testing.T) {
	bad := &recordingSink{err: errors.New("weaviate down")}
	good := &recordingSink{}
	src := staticSource{products: []Product{{ID: 1, Name: "Pointe Keg", Price: "170"}}}
	s := NewSyncer(src, lexicon.MustLoad(), []NamedSink{{Name: "weaviate", Sink: bad}, {Name: "file", Sink: good}}, nil)

	entries, report, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink weaviate")
	assert.Len(t, entries, 1)
	assert.Equal(t, []string{"weaviate"}, report.Failed)
	assert.Equal(t, []string{"file"}, report.Sinks)
	assert.Len(t, good.saved, 1)
}
