// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match resolves a requested product phrase to catalog candidates.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lapaisee/orderdesk/services/orders/catalog"
	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

// DefaultCandidateLimit is the number of candidates requested from the store.
const DefaultCandidateLimit = 5

// DefaultTimeout bounds one similarity lookup.
const DefaultTimeout = 5 * time.Second

// Matcher ranks catalog candidates for a product phrase.
//
// # Description
//
// The product phrase is extended with the container's query suffix (for
// example " carton 12x" for cartons) so similarity search leans toward the
// right packaging, then the store's ranked candidates are filtered by the
// container hint and by relevance to the product phrase. Filtering never
// re-orders and never falls back to the unfiltered list: if nothing
// survives, the result is empty.
//
// A hint that is not one of the four packaging categories (the fallback
// "unité", an unrecognized noun, or empty) is treated as no hint.
//
// # Thread Safety
//
// Safe for concurrent use if the underlying store is.
type Matcher struct {
	store   catalog.Store
	lex     *lexicon.Lexicon
	limit   int
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLimit sets the number of candidates requested from the store.
func WithLimit(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithTimeout sets the per-lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Matcher over store.
func New(store catalog.Store, lex *lexicon.Lexicon, opts ...Option) *Matcher {
	m := &Matcher{
		store:   store,
		lex:     lex,
		limit:   DefaultCandidateLimit,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns filtered candidates for product, best first.
//
// # Inputs
//
//   - ctx: Bounds the lookup together with the matcher timeout.
//   - product: Free-text product phrase as extracted.
//   - hint: Container category of the request.
//
// # Outputs
//
//   - []datatypes.CatalogEntry: Candidates in store order. Empty means no match.
//   - error: Non-nil only when the store failed. Callers degrade the item to
//     not found.
func (m *Matcher) Match(ctx context.Context, product string, hint datatypes.Container) ([]datatypes.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := m.Query(product, hint)
	candidates, err := m.store.LookupSimilar(ctx, query, m.limit)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", query, err)
	}

	filtered := make([]datatypes.CatalogEntry, 0, len(candidates))
	for _, c := range m.Filter(candidates, hint) {
		if m.Relevant(c, product) {
			filtered = append(filtered, c)
		}
	}
	m.logger.Debug("catalog match",
		slog.String("query", query),
		slog.Int("candidates", len(candidates)),
		slog.Int("kept", len(filtered)),
	)
	return filtered, nil
}

// Lookup returns unfiltered candidates for a free-text query, as used by the
// stock listing.
func (m *Matcher) Lookup(ctx context.Context, query string) ([]datatypes.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	candidates, err := m.store.LookupSimilar(ctx, query, m.limit)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", query, err)
	}
	return candidates, nil
}

// Query builds the similarity query for product under hint.
func (m *Matcher) Query(product string, hint datatypes.Container) string {
	rule, ok := m.lex.Container(hint)
	if !ok || !hint.IsCategory() {
		return product
	}
	return product + rule.QuerySuffix
}

// Filter keeps the candidates compatible with hint, preserving order.
func (m *Matcher) Filter(candidates []datatypes.CatalogEntry, hint datatypes.Container) []datatypes.CatalogEntry {
	if !hint.IsCategory() {
		return candidates
	}
	out := make([]datatypes.CatalogEntry, 0, len(candidates))
	for _, c := range candidates {
		if m.Accepts(c, hint) {
			out = append(out, c)
		}
	}
	return out
}

// Accepts reports whether entry fits the packaging category hint.
//
// # Description
//
// An entry fits when its format contains one of the category's format
// markers ("fût" for kegs, "canette" for cans) or when its name carries one
// of the category's name markers ("12x" for cartons). The classified
// container type is not consulted: a bottle-format entry tagged as a can
// line does not satisfy a can request.
func (m *Matcher) Accepts(entry datatypes.CatalogEntry, hint datatypes.Container) bool {
	if !hint.IsCategory() {
		return true
	}
	rule, ok := m.lex.Container(hint)
	if !ok {
		return false
	}
	format := lexicon.Fold(entry.Format)
	for _, marker := range rule.FormatMarkers {
		if strings.Contains(format, marker) {
			return true
		}
	}
	name := lexicon.Fold(entry.Name)
	for _, marker := range rule.NameMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// Relevant reports whether entry shares a product term with the phrase.
//
// # Description
//
// Packaging vocabulary is ignored on both sides, so the container suffix
// added to the query can rank entries but never makes one relevant. Two
// terms meet when they are equal or share a prefix of at least
// minSharedPrefix letters, which tolerates a trailing typo such as
// "daffodill". A phrase made only of packaging words matches nothing.
func (m *Matcher) Relevant(entry datatypes.CatalogEntry, product string) bool {
	want := m.lex.ProductTerms(product)
	if len(want) == 0 {
		return false
	}
	have := m.lex.ProductTerms(entry.Document())
	for w := range want {
		if have[w] {
			return true
		}
		for h := range have {
			if sharedPrefix(w, h) >= minSharedPrefix {
				return true
			}
		}
	}
	return false
}

// minSharedPrefix is the shortest common prefix, in runes, that lets two
// different terms meet.
const minSharedPrefix = 5

func sharedPrefix(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}
