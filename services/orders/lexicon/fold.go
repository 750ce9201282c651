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
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining accents, so that "Fût" and "fut"
// compare equal. Used for every keyword comparison in the package.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Tokenize splits text into folded search terms.
//
// # Description
//
// Folds the text, splits on anything that is not a letter or digit, drops
// stop words and single-character tokens, and trims a plural "s" from
// tokens longer than three characters so that "kegs" and "keg" meet.
// The result is a set: each term appears once.
//
// # Inputs
//
//   - text: Free text (a product phrase or a catalog document).
//
// # Outputs
//
//   - map[string]bool: The term set. Empty for empty input.
func (l *Lexicon) Tokenize(text string) map[string]bool {
	terms := make(map[string]bool)
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len(f) < 2 || l.IsStopWord(f) {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") {
			f = strings.TrimSuffix(f, "s")
		}
		terms[f] = true
	}
	return terms
}
