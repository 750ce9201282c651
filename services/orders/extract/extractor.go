// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns free-text order messages into structured orders.
package extract

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

// Extractor parses order messages against a lexicon.
//
// # Description
//
// Extraction runs in two passes over the lowercased message:
//
//  1. The primary pattern finds every "<qty> <container> [de|of] <product>"
//     phrase, left to right. Container nouns are normalized through the
//     lexicon's category priority (keg, carton, can, bottle).
//  2. Only if the primary pass found nothing in the whole message, the
//     fallback pattern finds "<qty> <product>" phrases and labels them with
//     ContainerUnit.
//
// Each scan resumes right after the captured product, so a quantity that
// terminated one product starts the next item. Greeting and politeness flags
// are computed independently of item extraction.
//
// # Thread Safety
//
// Immutable after New. Safe for concurrent use.
type Extractor struct {
	lex      *lexicon.Lexicon
	patterns lexicon.Patterns
	logger   *slog.Logger
}

// New creates an Extractor.
//
// # Inputs
//
//   - lex: Vocabulary. Must not be nil.
//   - patterns: Item patterns compiled from lex.
//   - logger: Logger for debug output. Nil uses slog.Default().
func New(lex *lexicon.Lexicon, patterns lexicon.Patterns, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{lex: lex, patterns: patterns, logger: logger}
}

// NewDefault creates an Extractor over the embedded lexicon.
func NewDefault() *Extractor {
	lex := lexicon.MustLoad()
	return New(lex, lex.MustCompilePatterns(), nil)
}

// Extract parses a message into a ParsedOrder.
//
// # Description
//
// Never fails. A message without any recognizable item yields an order with
// an empty item list; callers treat that as "not understood". Items with a
// zero or unparseable quantity, or an empty product phrase, are skipped.
//
// # Inputs
//
//   - message: Raw message text, any case.
//
// # Outputs
//
//   - datatypes.ParsedOrder: Items in input order plus tone flags.
func (e *Extractor) Extract(message string) datatypes.ParsedOrder {
	order := datatypes.ParsedOrder{
		OriginalText: message,
		Items:        []datatypes.RequestedItem{},
		Greeting:     e.lex.HasGreeting(message),
		Polite:       e.lex.HasPoliteness(message),
	}

	text := strings.TrimSpace(strings.ToLower(message))
	if text == "" {
		return order
	}

	scan(e.patterns.Primary, text, lexicon.PrimaryProduct, func(m []string) {
		qty, ok := parseQuantity(m[lexicon.PrimaryQuantity])
		product := strings.TrimSpace(m[lexicon.PrimaryProduct])
		if !ok || product == "" {
			return
		}
		noun := m[lexicon.PrimaryContainer]
		container, classified := e.lex.ClassifyContainer(noun)
		if !classified {
			container = datatypes.Container(noun)
		}
		order.Items = append(order.Items, datatypes.RequestedItem{
			Quantity:  qty,
			Container: container,
			Product:   product,
		})
	})

	if len(order.Items) == 0 {
		scan(e.patterns.Fallback, text, lexicon.FallbackProduct, func(m []string) {
			qty, ok := parseQuantity(m[lexicon.FallbackQuantity])
			product := strings.TrimSpace(m[lexicon.FallbackProduct])
			if !ok || product == "" {
				return
			}
			order.Items = append(order.Items, datatypes.RequestedItem{
				Quantity:  qty,
				Container: datatypes.ContainerUnit,
				Product:   product,
			})
		})
	}

	e.logger.Debug("order extracted",
		slog.Int("items", len(order.Items)),
		slog.Bool("greeting", order.Greeting),
		slog.Bool("polite", order.Polite),
	)
	return order
}

// scan calls fn for every match of re in text, left to right. After each
// match the search resumes at the end of the product group rather than the
// end of the whole match, so the boundary text stays available to the next
// match.
func scan(re *regexp.Regexp, text string, productGroup int, fn func(m []string)) {
	pos := 0
	for pos < len(text) {
		loc := re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return
		}

		groups := make([]string, len(loc)/2)
		for g := range groups {
			start, end := loc[2*g], loc[2*g+1]
			if start >= 0 {
				groups[g] = text[pos+start : pos+end]
			}
		}
		fn(groups)

		next := loc[2*productGroup+1]
		if next <= 0 {
			next = loc[1]
		}
		if next <= 0 {
			return
		}
		pos += next
	}
}

// parseQuantity accepts positive integers only.
func parseQuantity(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
