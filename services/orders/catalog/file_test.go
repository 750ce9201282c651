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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.json")
	fs := NewFileStore(path)
	ctx := context.Background()

	entries := testEntries()
	entries[0].Price = decimal.RequireFromString("4.50")
	entries[1].Stock = ""
	require.NoError(t, fs.Save(ctx, entries))

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(entries))
	assert.Equal(t, "Daffodil Can 44cl", got[0].Name)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, got[1].Stock.IsAbsent())

	// No temp files left behind.
	dirEntries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, dirEntries, 1)
}

func TestFileStore_LoadErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewFileStore(filepath.Join(t.TempDir(), "missing.json")).Load(ctx)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = NewFileStore(bad).Load(ctx)
	assert.Error(t, err)
}

func TestWatcher_RefreshesOnAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	fs := NewFileStore(path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, fs.Save(ctx, testEntries()[:1]))
	store := NewSnapshotStore(lexicon.MustLoad(), nil, nil)
	require.NoError(t, store.Refresh(ctx, fs))
	require.Equal(t, 1, store.Current().Len())

	w := NewWatcher(fs, store, nil)
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, fs.Save(ctx, testEntries()))

	assert.Eventually(t, func() bool {
		return store.Current().Len() == len(testEntries())
	}, 5*time.Second, 20*time.Millisecond)
}
