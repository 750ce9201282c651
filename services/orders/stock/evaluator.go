// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stock decides whether a matched catalog entry can serve a
// requested quantity.
package stock

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

// ParseStock interprets a raw stock level.
//
// # Description
//
// Integers are taken as is. Decimal text ("4.0") is truncated toward zero.
// Absent, non-numeric and negative values (back-ordered items) count as 0,
// so a malformed catalog record reads as a stock-out and never as stock.
//
// # Inputs
//
//   - level: Raw stock value from the catalog.
//
// # Outputs
//
//   - int: Units on hand, never negative.
func ParseStock(level datatypes.StockLevel) int {
	raw := strings.TrimSpace(string(level))
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return max(n, 0)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}

// Evaluator renders availability verdicts in one locale.
//
// # Thread Safety
//
// Immutable. Safe for concurrent use.
type Evaluator struct {
	phrases lexicon.Phrasebook
}

// NewEvaluator creates an Evaluator that writes messages from pb.
func NewEvaluator(pb lexicon.Phrasebook) *Evaluator {
	return &Evaluator{phrases: pb}
}

// Evaluate compares a requested item against its matched entry.
//
// # Description
//
// A nil entry yields StatusNotFound with a message naming the requested
// product and container exactly as extracted. Otherwise the parsed stock
// decides: stock >= quantity is available, zero stock is a stock-out, and
// anything in between is a partial shortage. Available is true only for
// the first case.
//
// # Inputs
//
//   - item: The requested item. Quantity is expected to be positive.
//   - entry: The best catalog match, or nil.
//
// # Outputs
//
//   - datatypes.StockVerdict: Always populated.
func (e *Evaluator) Evaluate(item datatypes.RequestedItem, entry *datatypes.CatalogEntry) datatypes.StockVerdict {
	verdict := datatypes.StockVerdict{Item: item, Entry: entry}

	if entry == nil {
		verdict.Status = datatypes.StatusNotFound
		verdict.Message = fmt.Sprintf(e.phrases.NotFound, item.Product, item.Container)
		return verdict
	}

	stock := ParseStock(entry.Stock)
	verdict.Stock = stock

	switch {
	case stock >= item.Quantity:
		verdict.Status = datatypes.StatusAvailable
		verdict.Available = true
		verdict.Message = fmt.Sprintf(e.phrases.Available, entry.Name, stock, item.Quantity)
	case stock == 0:
		verdict.Status = datatypes.StatusOutOfStock
		verdict.Message = fmt.Sprintf(e.phrases.OutOfStock, entry.Name, item.Quantity)
	default:
		verdict.Status = datatypes.StatusPartial
		verdict.Message = fmt.Sprintf(e.phrases.Partial, entry.Name, stock, item.Quantity)
	}
	return verdict
}
