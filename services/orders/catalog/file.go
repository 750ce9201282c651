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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// FileStore reads and writes a catalog snapshot as a JSON array.
//
// Save writes to a temporary file in the same directory and renames it over
// the target, so readers and file watchers never observe a partial file.
type FileStore struct {
	path string
}

// NewFileStore creates a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the snapshot file.
func (f *FileStore) Load(ctx context.Context) ([]datatypes.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var entries []datatypes.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", f.path, err)
	}
	return entries, nil
}

// Save replaces the snapshot file atomically.
func (f *FileStore) Save(ctx context.Context, entries []datatypes.CatalogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = []datatypes.CatalogEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("publish catalog file: %w", err)
	}
	return nil
}
