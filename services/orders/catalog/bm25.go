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
	"math"

	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

// =============================================================================
// BM25 Index
// =============================================================================

// BM25 tuning constants (Robertson et al. defaults).
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25Doc is the term set of one catalog entry.
type bm25Doc struct {
	tf  map[string]int
	len int
}

// BM25Index ranks catalog entries against a query with Okapi BM25.
//
// # Description
//
// Each entry's document is CatalogEntry.Document(), tokenized by the
// lexicon (accent-folded, stop words removed, light plural stripping).
// Terms are counted as binary presence: catalog documents are short and
// IDF carries most of the signal. IDF uses Lucene smoothing,
// log((N+1)/(df+1)) + 1, so it is always >= 1.
//
// # Thread Safety
//
// Immutable after BuildBM25Index. Safe for concurrent use.
type BM25Index struct {
	lex    *lexicon.Lexicon
	docs   []bm25Doc
	idf    map[string]float64
	avgLen float64
}

// BuildBM25Index indexes documents in order. Scores are reported by position.
func BuildBM25Index(lex *lexicon.Lexicon, documents []string) *BM25Index {
	idx := &BM25Index{lex: lex, idf: make(map[string]float64)}
	if len(documents) == 0 {
		return idx
	}

	df := make(map[string]int)
	totalLen := 0
	idx.docs = make([]bm25Doc, 0, len(documents))
	for _, text := range documents {
		terms := lex.Tokenize(text)
		tf := make(map[string]int, len(terms))
		for term := range terms {
			tf[term] = 1
			df[term]++
		}
		idx.docs = append(idx.docs, bm25Doc{tf: tf, len: len(tf)})
		totalLen += len(tf)
	}

	n := len(idx.docs)
	idx.avgLen = float64(totalLen) / float64(n)
	for term, docFreq := range df {
		idx.idf[term] = math.Log(float64(n+1)/float64(docFreq+1)) + 1.0
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *BM25Index) Len() int {
	return len(idx.docs)
}

// Score returns a normalized score in [0, 1] per document position.
//
// Documents sharing no term with the query score 0. The best document
// scores exactly 1 when any document matched.
func (idx *BM25Index) Score(query string) []float64 {
	scores := make([]float64, len(idx.docs))
	if query == "" || len(idx.docs) == 0 {
		return scores
	}
	terms := idx.lex.Tokenize(query)
	if len(terms) == 0 {
		return scores
	}

	var maxScore float64
	for i, doc := range idx.docs {
		s := bm25Score(terms, doc, idx.idf, idx.avgLen)
		scores[i] = s
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return scores
}

func bm25Score(terms map[string]bool, doc bm25Doc, idf map[string]float64, avgLen float64) float64 {
	if avgLen == 0 {
		return 0
	}
	var score float64
	norm := bm25K1 * (1 - bm25B + bm25B*float64(doc.len)/avgLen)
	for term := range terms {
		tf, ok := doc.tf[term]
		if !ok {
			continue
		}
		f := float64(tf)
		score += idf[term] * (f * (bm25K1 + 1)) / (f + norm)
	}
	return score
}
