// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the value types shared by every stage of the
// order-intake pipeline: requested items, catalog entries, stock verdicts
// and chat messages.
//
// All types are plain values. None of them hold locks or references to
// services, so they can be copied freely between goroutines.
package datatypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Containers and product lines
// =============================================================================

// Container is the packaging category of a requested item or catalog entry.
//
// The four canonical categories are ContainerKeg, ContainerCarton,
// ContainerCan and ContainerBottle. ContainerUnit is produced by the
// fallback extraction pattern when the message names no container at all.
type Container string

const (
	ContainerKeg     Container = "fût"
	ContainerCarton  Container = "carton"
	ContainerCan     Container = "canette"
	ContainerBottle  Container = "bouteille"
	ContainerUnit    Container = "unité"
	ContainerUnknown Container = "unknown"
)

// IsCategory reports whether c is one of the four canonical packaging
// categories the matcher can filter on.
func (c Container) IsCategory() bool {
	switch c {
	case ContainerKeg, ContainerCarton, ContainerCan, ContainerBottle:
		return true
	}
	return false
}

// ProductLine is the brewery range a product belongs to.
type ProductLine string

const (
	LineClean   ProductLine = "clean"
	LineWild    ProductLine = "wild"
	LineUnknown ProductLine = "unknown"
)

// =============================================================================
// Requests
// =============================================================================

// RequestedItem is one line of a customer's order as extracted from text.
//
// Quantity is always >= 1 and Product is never empty for items produced by
// the extractor.
type RequestedItem struct {
	Quantity  int       `json:"quantity"`
	Container Container `json:"container"`
	Product   string    `json:"product"`
}

// String renders the item the way it is shown in logs.
func (r RequestedItem) String() string {
	return fmt.Sprintf("%d x %s (%s)", r.Quantity, r.Product, r.Container)
}

// ParsedOrder is the result of extracting a free-text message.
type ParsedOrder struct {
	OriginalText string          `json:"original_text"`
	Items        []RequestedItem `json:"items"`
	Greeting     bool            `json:"greeting"`
	Polite       bool            `json:"polite"`
}

// IsEmpty reports whether the message yielded no items.
func (p ParsedOrder) IsEmpty() bool {
	return len(p.Items) == 0
}

// =============================================================================
// Catalog
// =============================================================================

// StockLevel is the raw stock quantity recorded for a catalog entry.
//
// # Description
//
// Catalog sources are inconsistent: the shop exports integers, null for
// unmanaged stock, and occasionally quoted strings. StockLevel keeps the
// raw text so that interpretation happens in one place (stock.ParseStock)
// rather than at every decode site. The empty value means "absent".
//
// # Thread Safety
//
// Immutable value type.
type StockLevel string

// StockOf builds a StockLevel from an integer quantity.
func StockOf(n int) StockLevel {
	return StockLevel(strconv.Itoa(n))
}

// IsAbsent reports whether no stock value was recorded.
func (s StockLevel) IsAbsent() bool {
	return strings.TrimSpace(string(s)) == ""
}

// UnmarshalJSON accepts numbers, strings and null.
func (s *StockLevel) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return fmt.Errorf("decode stock level: %w", err)
		}
		*s = StockLevel(str)
		return nil
	}
	*s = StockLevel(trimmed)
	return nil
}

// MarshalJSON writes integers as JSON numbers, absent values as null and
// anything else as a string.
func (s StockLevel) MarshalJSON() ([]byte, error) {
	if s.IsAbsent() {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(string(s))
}

// CatalogEntry is one sellable product from the brewery catalog.
//
// The JSON field names follow the shop export so that snapshot files written
// by the sync job can be loaded unchanged.
type CatalogEntry struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	SKU              string          `json:"sku,omitempty"`
	Stock            StockLevel      `json:"stock_quantity"`
	StockStatus      string          `json:"stock_status,omitempty"`
	Format           string          `json:"format"`
	ContainerType    Container       `json:"container_type"`
	Line             ProductLine     `json:"gamme"`
	Price            decimal.Decimal `json:"price"`
	Categories       string          `json:"categories,omitempty"`
	Description      string          `json:"description,omitempty"`
	ShortDescription string          `json:"short_description,omitempty"`
	SyncedAt         time.Time       `json:"last_sync"`
}

// Document renders the entry as the text indexed for similarity search.
func (e CatalogEntry) Document() string {
	parts := []string{e.Name}
	for _, p := range []string{e.Format, string(e.ContainerType), string(e.Line), e.SKU, e.Categories} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Verdicts
// =============================================================================

// VerdictStatus classifies the outcome of checking one requested item.
type VerdictStatus string

const (
	StatusAvailable  VerdictStatus = "available"
	StatusOutOfStock VerdictStatus = "out_of_stock"
	StatusPartial    VerdictStatus = "partial"
	StatusNotFound   VerdictStatus = "not_found"
)

// StockVerdict is the availability outcome for one requested item.
//
// Entry is nil when no catalog entry matched. Available is true exactly when
// Status is StatusAvailable.
type StockVerdict struct {
	Item      RequestedItem `json:"item"`
	Entry     *CatalogEntry `json:"entry,omitempty"`
	Status    VerdictStatus `json:"status"`
	Available bool          `json:"available"`
	Stock     int           `json:"stock"`
	Message   string        `json:"message"`
}

// AllAvailable reports whether every verdict is available. An empty slice
// is vacuously available.
func AllAvailable(verdicts []StockVerdict) bool {
	for _, v := range verdicts {
		if !v.Available {
			return false
		}
	}
	return true
}

// =============================================================================
// Chat
// =============================================================================

// Message is one turn of a chat conversation sent to a language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
