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
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

// FormatUnknown is the format of a product no rule recognised.
const FormatUnknown = "unknown"

var (
	breakTag = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)
)

// CleanHTML turns a product description into plain text: line breaks become
// spaces, tags are dropped and runs of whitespace collapse to one space.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}
	s = breakTag.ReplaceAllString(s, " ")
	s = anyTag.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// Classification is what the name rules say about a product.
type Classification struct {
	Line      datatypes.ProductLine
	Format    string
	Container datatypes.Container
}

// Classify applies the lexicon's line rules, then its format rules, to a
// product name.
//
// # Description
//
// The first matching line rule sets the line and a default container. The
// first matching format rule sets the format and overrides the container
// and line when the rule names them. Matching is on folded text, so "Fut"
// matches the keyword "fût".
//
// # Inputs
//
//   - lex: Lexicon holding the rules.
//   - name: Product name as sold in the shop.
//
// # Outputs
//
//   - Classification: Unknown values for anything no rule matched.
func Classify(lex *lexicon.Lexicon, name string) Classification {
	folded := lexicon.Fold(name)
	c := Classification{
		Line:      datatypes.LineUnknown,
		Format:    FormatUnknown,
		Container: datatypes.ContainerUnknown,
	}

	for _, rule := range lex.Lines() {
		if containsAny(folded, rule.Keywords) {
			c.Line = rule.Line
			if rule.Container != "" {
				c.Container = rule.Container
			}
			break
		}
	}

	for _, rule := range lex.Formats() {
		if containsAny(folded, rule.Keywords) {
			c.Format = rule.Format
			if rule.Container != "" {
				c.Container = rule.Container
			}
			if rule.Line != "" {
				c.Line = rule.Line
			}
			break
		}
	}
	return c
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ToEntry converts a shop product into a catalog entry stamped with now.
// Missing values become empty strings and an unparsable price becomes zero.
func ToEntry(lex *lexicon.Lexicon, p Product, now time.Time) datatypes.CatalogEntry {
	c := Classify(lex, p.Name)

	price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		price = decimal.Zero
	}

	names := make([]string, 0, len(p.Categories))
	for _, cat := range p.Categories {
		names = append(names, cat.Name)
	}

	status := p.StockStatus
	if status == "" {
		status = "unknown"
	}

	return datatypes.CatalogEntry{
		ID:               strconv.FormatInt(p.ID, 10),
		Name:             p.Name,
		SKU:              p.SKU,
		Stock:            p.StockQuantity,
		StockStatus:      status,
		Format:           c.Format,
		ContainerType:    c.Container,
		Line:             c.Line,
		Price:            price,
		Categories:       strings.Join(names, ", "),
		Description:      CleanHTML(p.Description),
		ShortDescription: CleanHTML(p.ShortDescription),
		SyncedAt:         now,
	}
}
