// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lexicon

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// Item Patterns
// =============================================================================

// Capture groups of the primary item pattern.
const (
	PrimaryQuantity  = 1
	PrimaryContainer = 2
	PrimaryProduct   = 3
)

// Capture groups of the fallback item pattern.
const (
	FallbackQuantity = 1
	FallbackProduct  = 2
)

// productClass matches product text: letters, digits, underscore, whitespace.
// Go's \w is ASCII-only, so the Unicode classes are spelled out to accept
// accented product names.
const productClass = `[\p{L}\p{N}_\s]+?`

// Patterns holds the compiled item patterns.
//
// Both patterns expect lowercased input. The product group is lazy and ends
// at the first boundary: a clause breaker word, a punctuation mark, the end
// of the text, or whitespace followed by the next quantity. The boundary
// text after the product is not part of the product group, so callers can
// resume scanning right after the product.
type Patterns struct {
	// Primary matches "<qty> <container noun> [de|of|d'] <product>".
	Primary *regexp.Regexp

	// Fallback matches "<qty> <product>" when no container noun is present.
	Fallback *regexp.Regexp
}

// CompilePatterns builds the item patterns from the lexicon vocabulary.
//
// # Outputs
//
//   - Patterns: The compiled patterns.
//   - error: Non-nil if a vocabulary fragment is not valid RE2 syntax.
func (l *Lexicon) CompilePatterns() (Patterns, error) {
	boundary := l.boundaryPattern()

	primary, err := regexp.Compile(
		`(\d+)\s*(` + alternation(l.containerNouns, false) + `)\b\s*` +
			l.connectorPattern() +
			`(` + productClass + `)` + boundary,
	)
	if err != nil {
		return Patterns{}, fmt.Errorf("compile primary pattern: %w", err)
	}

	fallback, err := regexp.Compile(`(\d+)\s+(` + productClass + `)` + boundary)
	if err != nil {
		return Patterns{}, fmt.Errorf("compile fallback pattern: %w", err)
	}

	return Patterns{Primary: primary, Fallback: fallback}, nil
}

// MustCompilePatterns is CompilePatterns for the embedded lexicon, where a
// failure is a build defect.
func (l *Lexicon) MustCompilePatterns() Patterns {
	p, err := l.CompilePatterns()
	if err != nil {
		panic(fmt.Sprintf("lexicon: %v", err))
	}
	return p
}

func (l *Lexicon) connectorPattern() string {
	if len(l.connectors) == 0 {
		return `(?:d['’]\s*)?`
	}
	return `(?:(?:` + alternation(l.connectors, true) + `)\s+|d['’]\s*)?`
}

func (l *Lexicon) boundaryPattern() string {
	var b strings.Builder
	b.WriteString(`(?:`)
	if len(l.clauseBreakers) > 0 {
		b.WriteString(`\s+(?:` + alternation(l.clauseBreakers, true) + `)\b|`)
	}
	b.WriteString(`\s*[,.;!?]|\s*$|\s+\d)`)
	return b.String()
}

// alternation joins fragments longest first so that a longer noun is tried
// before its prefix. Literal words are quoted.
func alternation(fragments []string, quote bool) string {
	sorted := append([]string(nil), fragments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	if quote {
		for i, f := range sorted {
			sorted[i] = regexp.QuoteMeta(f)
		}
	}
	return strings.Join(sorted, "|")
}
