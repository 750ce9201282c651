// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lexicon holds the vocabulary of the order desk: container nouns,
// greeting and politeness markers, product classification rules and the
// localized reply phrasebooks.
//
// The vocabulary is data, loaded from the embedded lexicon.yaml. Parsing and
// matching code never hard-codes a keyword.
package lexicon

import (
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// =============================================================================
// Embedded Lexicon
// =============================================================================

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// DefaultLocale is used when a requested phrasebook does not exist.
const DefaultLocale = "fr"

// =============================================================================
// Types
// =============================================================================

// ContainerRule describes one packaging category.
type ContainerRule struct {
	// Keywords identify the category inside a container noun or a catalog format.
	Keywords []string `yaml:"keywords"`

	// QuerySuffix is appended to the product phrase before similarity search.
	QuerySuffix string `yaml:"query_suffix"`

	// FormatMarkers accept a catalog entry whose format contains one of them.
	// Empty means the category name itself.
	FormatMarkers []string `yaml:"format_markers"`

	// NameMarkers accept a catalog entry whose name contains one of them.
	NameMarkers []string `yaml:"name_markers"`
}

// LineRule classifies a shop product into a brewery line.
type LineRule struct {
	Line      datatypes.ProductLine `yaml:"line"`
	Keywords  []string              `yaml:"keywords"`
	Container datatypes.Container   `yaml:"container"`
}

// FormatRule maps a product name fragment to a packaging format.
type FormatRule struct {
	Keywords  []string              `yaml:"keywords"`
	Format    string                `yaml:"format"`
	Container datatypes.Container   `yaml:"container"`
	Line      datatypes.ProductLine `yaml:"line"`
}

// Phrasebook holds the reply texts for one locale.
//
// Fields holding a format verb document their arguments.
type Phrasebook struct {
	Greeting        string `yaml:"greeting"`
	Header          string `yaml:"header"`
	AllAvailable    string `yaml:"all_available"`
	SomeUnavailable string `yaml:"some_unavailable"`
	Confirm         string `yaml:"confirm"`
	ThankYou        string `yaml:"thank_you"`
	NotUnderstood   string `yaml:"not_understood"`
	Checking        string `yaml:"checking"`

	Available  string `yaml:"available"`    // name, stock, requested
	OutOfStock string `yaml:"out_of_stock"` // name, requested
	Partial    string `yaml:"partial"`      // name, stock, requested
	NotFound   string `yaml:"not_found"`    // product phrase, container

	StockHeader string `yaml:"stock_header"` // query
	StockLine   string `yaml:"stock_line"`   // name, stock, price
	StockNone   string `yaml:"stock_none"`   // query
	StockUsage  string `yaml:"stock_usage"`

	Denied  string `yaml:"denied"`
	Welcome string `yaml:"welcome"`
	Help    string `yaml:"help"`
	Whoami  string `yaml:"whoami"` // id, username, id
	Unnamed string `yaml:"unnamed"`

	Prompt string `yaml:"prompt"` // original message, verdict lines
}

// lexiconFile mirrors lexicon.yaml.
type lexiconFile struct {
	Priority       []datatypes.Container                 `yaml:"priority"`
	Containers     map[datatypes.Container]ContainerRule `yaml:"containers"`
	ContainerNouns []string                              `yaml:"container_nouns"`
	Connectors     []string                              `yaml:"connectors"`
	Greetings      []string                              `yaml:"greetings"`
	Politeness     []string                              `yaml:"politeness"`
	ClauseBreakers []string                              `yaml:"clause_breakers"`
	StopWords      []string                              `yaml:"stop_words"`
	Lines          []LineRule                            `yaml:"lines"`
	Formats        []FormatRule                          `yaml:"formats"`
	Phrasebooks    map[string]Phrasebook                 `yaml:"phrasebooks"`
}

// Lexicon is the compiled order vocabulary.
//
// # Description
//
// Holds the keyword tables from lexicon.yaml with their keywords already
// accent-folded, plus the compiled greeting and politeness detectors.
//
// # Thread Safety
//
// Immutable after Parse returns. Safe for concurrent use.
type Lexicon struct {
	priority       []datatypes.Container
	containers     map[datatypes.Container]ContainerRule
	containerNouns []string
	connectors     []string
	clauseBreakers []string
	stopWords      map[string]bool
	packaging      map[string]bool
	lines          []LineRule
	formats        []FormatRule
	phrasebooks    map[string]Phrasebook

	greetingRe   *regexp.Regexp
	politenessRe *regexp.Regexp
}

// =============================================================================
// Loading
// =============================================================================

var (
	defaultLexicon     *Lexicon
	defaultLexiconOnce sync.Once
	defaultLexiconErr  error
)

// Load parses and caches the embedded lexicon.
//
// # Outputs
//
//   - *Lexicon: The compiled lexicon. Never nil on success.
//   - error: Non-nil if the embedded YAML is malformed or inconsistent.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func Load() (*Lexicon, error) {
	defaultLexiconOnce.Do(func() {
		defaultLexicon, defaultLexiconErr = Parse(defaultLexiconYAML)
		if defaultLexiconErr == nil {
			slog.Debug("order lexicon loaded",
				slog.Int("container_nouns", len(defaultLexicon.containerNouns)),
				slog.Int("phrasebooks", len(defaultLexicon.phrasebooks)),
			)
		}
	})
	return defaultLexicon, defaultLexiconErr
}

// MustLoad returns the embedded lexicon and panics if it cannot be parsed.
//
// # Description
//
// Unlike optional tables, the order vocabulary has no meaningful empty
// fallback: every stage of the pipeline depends on it. A broken embedded
// file is a build defect, so it is surfaced at startup.
func MustLoad() *Lexicon {
	lex, err := Load()
	if err != nil {
		panic(fmt.Sprintf("lexicon: %v", err))
	}
	return lex
}

// Parse compiles a lexicon from YAML.
//
// # Description
//
// Validates that every priority category has at least one keyword, that the
// default phrasebook exists, and that all regex fragments compile. Keywords
// are folded (lowercase, accents removed) once here.
//
// # Inputs
//
//   - data: YAML document in the lexicon.yaml schema.
//
// # Outputs
//
//   - *Lexicon: The compiled lexicon.
//   - error: Non-nil on malformed YAML, missing sections or bad regex fragments.
func Parse(data []byte) (*Lexicon, error) {
	var raw lexiconFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}

	if len(raw.Priority) == 0 {
		return nil, fmt.Errorf("lexicon: priority list is empty")
	}
	if len(raw.ContainerNouns) == 0 {
		return nil, fmt.Errorf("lexicon: container_nouns is empty")
	}
	if _, ok := raw.Phrasebooks[DefaultLocale]; !ok {
		return nil, fmt.Errorf("lexicon: missing %q phrasebook", DefaultLocale)
	}

	containers := make(map[datatypes.Container]ContainerRule, len(raw.Containers))
	for _, c := range raw.Priority {
		rule, ok := raw.Containers[c]
		if !ok || len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("lexicon: container %q has no keywords", c)
		}
		rule.Keywords = foldAll(rule.Keywords)
		rule.NameMarkers = foldAll(rule.NameMarkers)
		if len(rule.FormatMarkers) == 0 {
			rule.FormatMarkers = []string{string(c)}
		}
		rule.FormatMarkers = foldAll(rule.FormatMarkers)
		containers[c] = rule
	}

	greetingRe, err := compileWordSet(raw.Greetings)
	if err != nil {
		return nil, fmt.Errorf("lexicon: greetings: %w", err)
	}
	politenessRe, err := compileWordSet(raw.Politeness)
	if err != nil {
		return nil, fmt.Errorf("lexicon: politeness: %w", err)
	}

	stop := make(map[string]bool, len(raw.StopWords))
	for _, w := range raw.StopWords {
		stop[Fold(w)] = true
	}

	lines := make([]LineRule, len(raw.Lines))
	for i, r := range raw.Lines {
		r.Keywords = foldAll(r.Keywords)
		lines[i] = r
	}
	formats := make([]FormatRule, len(raw.Formats))
	for i, r := range raw.Formats {
		r.Keywords = foldAll(r.Keywords)
		formats[i] = r
	}

	lex := &Lexicon{
		priority:       raw.Priority,
		containers:     containers,
		containerNouns: raw.ContainerNouns,
		connectors:     raw.Connectors,
		clauseBreakers: raw.ClauseBreakers,
		stopWords:      stop,
		lines:          lines,
		formats:        formats,
		phrasebooks:    raw.Phrasebooks,
		greetingRe:     greetingRe,
		politenessRe:   politenessRe,
	}
	lex.packaging = lex.packagingTerms()
	return lex, nil
}

// packagingTerms collects the search terms that only describe packaging.
func (l *Lexicon) packagingTerms() map[string]bool {
	terms := make(map[string]bool)
	for _, rule := range l.containers {
		words := append([]string{rule.QuerySuffix}, rule.Keywords...)
		words = append(words, rule.FormatMarkers...)
		words = append(words, rule.NameMarkers...)
		for _, w := range words {
			for t := range l.Tokenize(w) {
				terms[t] = true
			}
		}
	}
	return terms
}

// compileWordSet builds a case-insensitive, word-bounded alternation.
func compileWordSet(fragments []string) (*regexp.Regexp, error) {
	if len(fragments) == 0 {
		return regexp.MustCompile(`$^`), nil
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(fragments, "|") + `)\b`)
}

func foldAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Fold(w)
	}
	return out
}

// =============================================================================
// Queries
// =============================================================================

// HasGreeting reports whether text contains a greeting marker.
func (l *Lexicon) HasGreeting(text string) bool {
	return l.greetingRe.MatchString(text)
}

// HasPoliteness reports whether text contains a politeness marker.
func (l *Lexicon) HasPoliteness(text string) bool {
	return l.politenessRe.MatchString(text)
}

// ClassifyContainer maps a container noun to its category.
//
// # Description
//
// Walks the categories in priority order (keg, carton, can, bottle) and
// returns the first whose keyword is contained in the folded noun. A noun
// that matches several categories resolves to the highest priority one.
//
// # Outputs
//
//   - datatypes.Container: The category, or ContainerUnknown.
//   - bool: False when no category matched.
func (l *Lexicon) ClassifyContainer(noun string) (datatypes.Container, bool) {
	folded := Fold(noun)
	for _, c := range l.priority {
		for _, kw := range l.containers[c].Keywords {
			if strings.Contains(folded, kw) {
				return c, true
			}
		}
	}
	return datatypes.ContainerUnknown, false
}

// Priority returns the container categories in match order.
func (l *Lexicon) Priority() []datatypes.Container {
	return append([]datatypes.Container(nil), l.priority...)
}

// Container returns the rule for a category.
func (l *Lexicon) Container(c datatypes.Container) (ContainerRule, bool) {
	rule, ok := l.containers[c]
	return rule, ok
}

// IsPackagingTerm reports whether a search term names a container rather
// than a product, such as "fut" or "12x".
func (l *Lexicon) IsPackagingTerm(term string) bool {
	return l.packaging[term]
}

// ProductTerms tokenizes text and drops packaging vocabulary.
func (l *Lexicon) ProductTerms(text string) map[string]bool {
	terms := l.Tokenize(text)
	for t := range terms {
		if l.packaging[t] {
			delete(terms, t)
		}
	}
	return terms
}

// IsStopWord reports whether a folded token carries no search signal.
func (l *Lexicon) IsStopWord(token string) bool {
	return l.stopWords[token]
}

// Lines returns the product line classification rules in evaluation order.
func (l *Lexicon) Lines() []LineRule {
	return l.lines
}

// Formats returns the format classification rules in evaluation order.
func (l *Lexicon) Formats() []FormatRule {
	return l.formats
}

// Phrasebook returns the phrasebook for locale, falling back to DefaultLocale.
func (l *Lexicon) Phrasebook(locale string) Phrasebook {
	if pb, ok := l.phrasebooks[strings.ToLower(locale)]; ok {
		return pb
	}
	return l.phrasebooks[DefaultLocale]
}

// HasLocale reports whether a phrasebook exists for locale.
func (l *Lexicon) HasLocale(locale string) bool {
	_, ok := l.phrasebooks[strings.ToLower(locale)]
	return ok
}
