// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders"
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

func testEntries() []datatypes.CatalogEntry {
	return []datatypes.CatalogEntry{
		{ID: "1", Name: "Daffodil Fût 20L", Format: "fût 20L", ContainerType: datatypes.ContainerKeg, Stock: datatypes.StockOf(10), Price: decimal.RequireFromString("180")},
		{ID: "2", Name: "Spearhead Carton 12x", Format: "carton 12 canettes 44cl", ContainerType: datatypes.ContainerCarton, Stock: datatypes.StockOf(0), Price: decimal.RequireFromString("42")},
	}
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, catalog.NewFileStore(path).Save(context.Background(), testEntries()))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	t.Setenv("ORDERS_ENV", "production")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	lex := lexicon.MustLoad()
	snap := catalog.NewSnapshotStore(lex, nil, nil)
	require.NoError(t, snap.Refresh(context.Background(), catalog.StaticLoader(testEntries())))
	pb := lex.Phrasebook("fr")
	p, err := pipeline.New(pipeline.Config{
		Extractor: extract.NewDefault(),
		Matcher:   match.New(snap, lex),
		Evaluator: stock.NewEvaluator(pb),
		Composer:  respond.NewComposer(pb),
	})
	require.NoError(t, err)

	router := gin.New()
	svc := orders.NewService(p, orders.WithAccessPolicy(orders.AllowlistAccess("42")))
	orders.RegisterRoutes(router.Group("/v1"), orders.NewHandlers(svc))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// =============================================================================
// Local commands
// =============================================================================

func TestParseCmd_Text(t *testing.T) {
	out, err := execute(t, "parse", "2 fûts de daffodil et 3 cartons de spearhead")
	require.NoError(t, err)
	assert.Contains(t, out, "2 item(s)")
	assert.Contains(t, out, "2 x daffodil (fût)")
	assert.Contains(t, out, "3 x spearhead (carton)")
}

func TestParseCmd_JSON(t *testing.T) {
	out, err := execute(t, "parse", "--json", "2 fûts de daffodil")
	require.NoError(t, err)

	var order datatypes.ParsedOrder
	require.NoError(t, json.Unmarshal([]byte(out), &order))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
}

func TestParseCmd_NothingRecognised(t *testing.T) {
	out, err := execute(t, "parse", "bonjour")
	require.NoError(t, err)
	assert.Contains(t, out, "no items recognised")
}

func TestCheckCmd(t *testing.T) {
	path := writeCatalog(t)

	out, err := execute(t, "check", "--catalog", path, "2 fûts de daffodil et 3 cartons de spearhead")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Daffodil Fût 20L: 10 en stock (demande: 2)")
	assert.Contains(t, out, "❌ Spearhead Carton 12x: rupture de stock (demande: 3)")
	assert.Contains(t, out, "responder: deterministic")
}

func TestCheckCmd_MissingCatalog(t *testing.T) {
	_, err := execute(t, "check", "--catalog", filepath.Join(t.TempDir(), "missing.json"), "1 fût de daffodil")
	assert.Error(t, err)
}

// =============================================================================
// Remote commands
// =============================================================================

func TestOrderCmd(t *testing.T) {
	server := testServer(t)

	out, err := execute(t, "order", "--server", server.URL, "--user", "42", "1 fût de daffodil")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Daffodil Fût 20L: 10 en stock (demande: 1)")
	assert.Contains(t, out, "🔍 Je vérifie les stocks...")
}

func TestOrderCmd_Denied(t *testing.T) {
	server := testServer(t)

	_, err := execute(t, "order", "--server", server.URL, "--user", "7", "1 fût de daffodil")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_DENIED")
}

func TestStockCmd(t *testing.T) {
	server := testServer(t)

	out, err := execute(t, "stock", "--server", server.URL, "--user", "42", "daffodil")
	require.NoError(t, err)
	assert.Contains(t, out, "Daffodil Fût 20L")
	assert.Contains(t, out, "180.00 CHF")
}
