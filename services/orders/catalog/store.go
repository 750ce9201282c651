// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog provides the product catalog backends used by the matcher:
// an in-process snapshot with lexical and embedding search, a Weaviate
// vector store, and Postgres and file sources that feed snapshots.
package catalog

import (
	"context"
	"errors"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// ErrNotFound is returned when an entry ID does not exist.
var ErrNotFound = errors.New("catalog: entry not found")

// Store answers similarity queries over the catalog.
//
// # Description
//
// LookupSimilar returns up to limit entries ranked by relevance to a free
// text query, best first. An empty result is not an error. Implementations
// return an error only when the backend itself failed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	LookupSimilar(ctx context.Context, query string, limit int) ([]datatypes.CatalogEntry, error)
	Get(ctx context.Context, id string) (datatypes.CatalogEntry, bool, error)
}

// Loader reads a full catalog from a source of record.
type Loader interface {
	Load(ctx context.Context) ([]datatypes.CatalogEntry, error)
}

// Sink persists a full catalog, replacing what was there.
type Sink interface {
	Save(ctx context.Context, entries []datatypes.CatalogEntry) error
}
