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
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// DefaultWeaviateClass is the collection holding catalog entries.
const DefaultWeaviateClass = "BreweryProduct"

// entryNamespace derives stable Weaviate object IDs from catalog IDs.
var entryNamespace = uuid.MustParse("6f0c1a52-94a4-4c55-9a0e-2d6f4c3b8e17")

// Weaviate property names.
const (
	propEntryID          = "entryId"
	propName             = "name"
	propSKU              = "sku"
	propStock            = "stockQuantity"
	propStockStatus      = "stockStatus"
	propFormat           = "format"
	propContainerType    = "containerType"
	propLine             = "gamme"
	propPrice            = "price"
	propCategories       = "categories"
	propDescription      = "description"
	propShortDescription = "shortDescription"
	propSyncedAt         = "lastSync"
)

var weaviateTextProps = []string{
	propEntryID, propName, propSKU, propStock, propStockStatus, propFormat,
	propContainerType, propLine, propPrice, propCategories, propDescription,
	propShortDescription, propSyncedAt,
}

// WeaviateConfig configures the Weaviate catalog backend.
type WeaviateConfig struct {
	Host   string
	Scheme string
	APIKey string

	// Class is the collection name. Empty uses DefaultWeaviateClass.
	Class string

	// Vectorizer is the server-side vectorizer module used when the class is
	// created and no Embedder is given, e.g. "text2vec-ollama".
	Vectorizer string
}

// WeaviateStore is a Store and Sink backed by a Weaviate collection.
//
// # Description
//
// When an Embedder is supplied, vectors are computed client-side: objects
// are written with their vector and queries use nearVector. Without one the
// collection's vectorizer module does the work and queries use nearText.
// Object IDs are UUIDv5 of the catalog ID, so Save is an idempotent upsert.
//
// # Thread Safety
//
// Safe for concurrent use.
type WeaviateStore struct {
	client   *weaviate.Client
	class    string
	cfg      WeaviateConfig
	embedder Embedder
	logger   *slog.Logger
}

// NewWeaviateStore creates a client. embedder may be nil.
func NewWeaviateStore(cfg WeaviateConfig, embedder Embedder, logger *slog.Logger) (*WeaviateStore, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("weaviate: host is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Class == "" {
		cfg.Class = DefaultWeaviateClass
	}
	if logger == nil {
		logger = slog.Default()
	}

	wcfg := weaviate.Config{Host: cfg.Host, Scheme: cfg.Scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateStore{client: client, class: cfg.Class, cfg: cfg, embedder: embedder, logger: logger}, nil
}

// EnsureSchema creates the collection if it does not exist.
func (s *WeaviateStore) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("check weaviate class: %w", err)
	}
	if exists {
		return nil
	}

	props := make([]*models.Property, 0, len(weaviateTextProps))
	for _, name := range weaviateTextProps {
		props = append(props, &models.Property{Name: name, DataType: []string{"text"}})
	}
	vectorizer := "none"
	if s.embedder == nil && s.cfg.Vectorizer != "" {
		vectorizer = s.cfg.Vectorizer
	}
	class := &models.Class{
		Class:      s.class,
		Vectorizer: vectorizer,
		Properties: props,
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create weaviate class %s: %w", s.class, err)
	}
	s.logger.Info("weaviate class created", slog.String("class", s.class), slog.String("vectorizer", vectorizer))
	return nil
}

// LookupSimilar runs a nearest-neighbour query.
func (s *WeaviateStore) LookupSimilar(ctx context.Context, query string, limit int) ([]datatypes.CatalogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	fields := make([]graphql.Field, 0, len(weaviateTextProps))
	for _, name := range weaviateTextProps {
		fields = append(fields, graphql.Field{Name: name})
	}

	get := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithLimit(limit)

	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			catalogBackendErrors.WithLabelValues("weaviate", "embed").Inc()
			return nil, fmt.Errorf("embed query: %w", err)
		}
		get = get.WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vec))
	} else {
		get = get.WithNearText(s.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query}))
	}

	resp, err := get.Do(ctx)
	if err != nil {
		catalogBackendErrors.WithLabelValues("weaviate", "query").Inc()
		return nil, fmt.Errorf("weaviate query: %w", err)
	}
	if len(resp.Errors) > 0 {
		catalogBackendErrors.WithLabelValues("weaviate", "query").Inc()
		return nil, fmt.Errorf("weaviate query: %s", resp.Errors[0].Message)
	}

	getData, _ := resp.Data["Get"].(map[string]interface{})
	rows, _ := getData[s.class].([]interface{})
	out := make([]datatypes.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, entryFromProperties(props))
	}
	return out, nil
}

// Get fetches one entry by catalog ID.
func (s *WeaviateStore) Get(ctx context.Context, id string) (datatypes.CatalogEntry, bool, error) {
	oid := objectID(id)
	exists, err := s.client.Data().Checker().WithClassName(s.class).WithID(oid.String()).Do(ctx)
	if err != nil {
		catalogBackendErrors.WithLabelValues("weaviate", "get").Inc()
		return datatypes.CatalogEntry{}, false, fmt.Errorf("weaviate exists check: %w", err)
	}
	if !exists {
		return datatypes.CatalogEntry{}, false, nil
	}
	objs, err := s.client.Data().ObjectsGetter().WithClassName(s.class).WithID(oid.String()).Do(ctx)
	if err != nil {
		catalogBackendErrors.WithLabelValues("weaviate", "get").Inc()
		return datatypes.CatalogEntry{}, false, fmt.Errorf("weaviate get: %w", err)
	}
	if len(objs) == 0 {
		return datatypes.CatalogEntry{}, false, nil
	}
	props, _ := objs[0].Properties.(map[string]interface{})
	return entryFromProperties(props), true, nil
}

// Save upserts entries in one batch. Objects for products no longer present
// are left in place; their stock status marks them unavailable.
func (s *WeaviateStore) Save(ctx context.Context, entries []datatypes.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	objs := make([]*models.Object, 0, len(entries))
	for _, e := range entries {
		obj := &models.Object{
			Class:      s.class,
			ID:         objectID(e.ID),
			Properties: entryProperties(e),
		}
		if s.embedder != nil {
			vec, err := s.embedder.Embed(ctx, e.Document())
			if err != nil {
				return fmt.Errorf("embed entry %s: %w", e.ID, err)
			}
			obj.Vector = models.C11yVector(vec)
		}
		objs = append(objs, obj)
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		catalogBackendErrors.WithLabelValues("weaviate", "save").Inc()
		return fmt.Errorf("weaviate batch: %w", err)
	}
	failed := 0
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			failed++
			s.logger.Warn("weaviate object rejected",
				slog.String("id", string(r.ID)),
				slog.String("error", r.Result.Errors.Error[0].Message),
			)
		}
	}
	if failed > 0 {
		catalogBackendErrors.WithLabelValues("weaviate", "save").Inc()
		return fmt.Errorf("weaviate batch: %d of %d objects rejected", failed, len(objs))
	}
	return nil
}

func objectID(entryID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(entryNamespace, []byte(entryID)).String())
}

func entryProperties(e datatypes.CatalogEntry) map[string]interface{} {
	synced := ""
	if !e.SyncedAt.IsZero() {
		synced = e.SyncedAt.UTC().Format(time.RFC3339)
	}
	return map[string]interface{}{
		propEntryID:          e.ID,
		propName:             e.Name,
		propSKU:              e.SKU,
		propStock:            string(e.Stock),
		propStockStatus:      e.StockStatus,
		propFormat:           e.Format,
		propContainerType:    string(e.ContainerType),
		propLine:             string(e.Line),
		propPrice:            e.Price.String(),
		propCategories:       e.Categories,
		propDescription:      e.Description,
		propShortDescription: e.ShortDescription,
		propSyncedAt:         synced,
	}
}

func entryFromProperties(props map[string]interface{}) datatypes.CatalogEntry {
	str := func(key string) string {
		v, _ := props[key].(string)
		return v
	}
	e := datatypes.CatalogEntry{
		ID:               str(propEntryID),
		Name:             str(propName),
		SKU:              str(propSKU),
		Stock:            datatypes.StockLevel(str(propStock)),
		StockStatus:      str(propStockStatus),
		Format:           str(propFormat),
		ContainerType:    datatypes.Container(str(propContainerType)),
		Line:             datatypes.ProductLine(str(propLine)),
		Categories:       str(propCategories),
		Description:      str(propDescription),
		ShortDescription: str(propShortDescription),
	}
	if p, err := decimal.NewFromString(str(propPrice)); err == nil {
		e.Price = p
	}
	if t, err := time.Parse(time.RFC3339, str(propSyncedAt)); err == nil {
		e.SyncedAt = t
	}
	return e
}
