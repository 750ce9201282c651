// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package respond turns availability verdicts into the reply sent to the
// customer.
//
// Two strategies implement Responder: the deterministic Composer, which
// never fails, and Generative, which asks a language model to phrase the
// reply. Callers try Generative first and fall back to the Composer.
package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/stock"
)

// Responder names.
const (
	NameDeterministic = "deterministic"
	NameGenerative    = "generative"
)

// Responder produces the reply for a parsed order and its verdicts.
type Responder interface {
	Respond(ctx context.Context, order datatypes.ParsedOrder, verdicts []datatypes.StockVerdict) (string, error)
	Name() string
}

// Composer builds replies from a phrasebook.
//
// # Thread Safety
//
// Immutable. Safe for concurrent use.
type Composer struct {
	phrases lexicon.Phrasebook
}

// NewComposer creates a Composer for pb.
func NewComposer(pb lexicon.Phrasebook) *Composer {
	return &Composer{phrases: pb}
}

// Name implements Responder.
func (c *Composer) Name() string {
	return NameDeterministic
}

// Respond implements Responder. It never returns an error.
func (c *Composer) Respond(_ context.Context, order datatypes.ParsedOrder, verdicts []datatypes.StockVerdict) (string, error) {
	return c.Compose(order, verdicts), nil
}

// Compose renders the reply.
//
// # Description
//
// An order without items gets the "not understood" text with a usage
// example. Otherwise the reply is, line by line: a greeting if the customer
// greeted, the summary header, one status line per verdict in item order,
// an "all available" or "some unavailable" closing line, the confirmation
// question, and a thank-you line if the customer was polite.
func (c *Composer) Compose(order datatypes.ParsedOrder, verdicts []datatypes.StockVerdict) string {
	if order.IsEmpty() {
		return c.phrases.NotUnderstood
	}

	lines := make([]string, 0, len(verdicts)+5)
	if order.Greeting {
		lines = append(lines, c.phrases.Greeting)
	}
	lines = append(lines, c.phrases.Header)
	for _, v := range verdicts {
		lines = append(lines, v.Message)
	}
	if datatypes.AllAvailable(verdicts) {
		lines = append(lines, c.phrases.AllAvailable)
	} else {
		lines = append(lines, c.phrases.SomeUnavailable)
	}
	lines = append(lines, c.phrases.Confirm)
	if order.Polite {
		lines = append(lines, c.phrases.ThankYou)
	}
	return strings.Join(lines, "\n")
}

// StockReport renders the stock listing for a product query.
func (c *Composer) StockReport(query string, entries []datatypes.CatalogEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf(c.phrases.StockNone, query)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf(c.phrases.StockHeader, query))
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(c.phrases.StockLine, e.Name, stock.ParseStock(e.Stock), e.Price.StringFixed(2)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Acknowledgement is the progress line shown while stock is being checked.
func (c *Composer) Acknowledgement() string {
	return c.phrases.Checking
}

// Phrases returns the phrasebook.
func (c *Composer) Phrases() lexicon.Phrasebook {
	return c.phrases
}
