// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs one customer message through extraction, catalog
// matching, availability evaluation and reply composition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/extract"
	"github.com/lapaisee/orderdesk/services/orders/match"
	"github.com/lapaisee/orderdesk/services/orders/redact"
	"github.com/lapaisee/orderdesk/services/orders/respond"
	"github.com/lapaisee/orderdesk/services/orders/stock"
)

// Result is everything produced for one message.
type Result struct {
	Order    datatypes.ParsedOrder    `json:"order"`
	Verdicts []datatypes.StockVerdict `json:"verdicts"`
	Reply    string                   `json:"reply"`

	// Acknowledgement is the progress line a transport may show before the
	// reply. Empty when nothing was extracted.
	Acknowledgement string `json:"acknowledgement,omitempty"`

	// Responder names the strategy that produced Reply.
	Responder  string `json:"responder"`
	Understood bool   `json:"understood"`
}

// StockResult is the answer to a stock listing query.
type StockResult struct {
	Query   string                   `json:"query"`
	Entries []datatypes.CatalogEntry `json:"entries"`
	Reply   string                   `json:"reply"`
}

// Config holds the pipeline's collaborators.
type Config struct {
	Extractor *extract.Extractor
	Matcher   *match.Matcher
	Evaluator *stock.Evaluator
	Composer  *respond.Composer

	// Generative is tried first when set. Nil means composer only.
	Generative respond.Responder

	Logger *slog.Logger
}

// Pipeline processes customer messages.
//
// # Description
//
// Every call yields exactly one reply. Items are checked in extraction
// order. A failed catalog lookup degrades the item to not found, and a
// failed generative reply degrades to the deterministic composer. No
// state is kept between calls.
//
// # Thread Safety
//
// Safe for concurrent use.
type Pipeline struct {
	extractor  *extract.Extractor
	matcher    *match.Matcher
	evaluator  *stock.Evaluator
	composer   *respond.Composer
	generative respond.Responder
	logger     *slog.Logger
}

// New validates cfg and creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("pipeline: extractor is required")
	case cfg.Matcher == nil:
		return nil, fmt.Errorf("pipeline: matcher is required")
	case cfg.Evaluator == nil:
		return nil, fmt.Errorf("pipeline: evaluator is required")
	case cfg.Composer == nil:
		return nil, fmt.Errorf("pipeline: composer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:  cfg.Extractor,
		matcher:    cfg.Matcher,
		evaluator:  cfg.Evaluator,
		composer:   cfg.Composer,
		generative: cfg.Generative,
		logger:     logger,
	}, nil
}

// Composer returns the deterministic composer.
func (p *Pipeline) Composer() *respond.Composer {
	return p.composer
}

// Extract parses message without touching the catalog.
func (p *Pipeline) Extract(message string) datatypes.ParsedOrder {
	return p.extractor.Extract(message)
}

// Run processes one message.
//
// # Inputs
//
//   - ctx: Bounds catalog lookups and the generative call.
//   - message: Raw customer text.
//
// # Outputs
//
//   - Result: Always populated. Verdicts is empty, never nil, for an order
//     without items.
func (p *Pipeline) Run(ctx context.Context, message string) Result {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Run")
	defer span.End()

	order := p.extractor.Extract(message)
	span.SetAttributes(
		attribute.Int("items", len(order.Items)),
		attribute.Bool("greeting", order.Greeting),
		attribute.Bool("polite", order.Polite),
	)

	res := Result{Order: order, Verdicts: []datatypes.StockVerdict{}}

	if order.IsEmpty() {
		res.Reply = p.composer.Compose(order, res.Verdicts)
		res.Responder = p.composer.Name()
		runsTotal.WithLabelValues("not_understood").Inc()
		repliesTotal.WithLabelValues(res.Responder).Inc()
		runDuration.Observe(time.Since(start).Seconds())
		p.logger.Info("order not understood", slog.Int("length", len(message)))
		return res
	}

	res.Understood = true
	res.Acknowledgement = p.composer.Acknowledgement()
	for _, item := range order.Items {
		res.Verdicts = append(res.Verdicts, p.check(ctx, item))
	}
	res.Reply, res.Responder = p.reply(ctx, order, res.Verdicts)

	runsTotal.WithLabelValues("understood").Inc()
	repliesTotal.WithLabelValues(res.Responder).Inc()
	runDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("responder", res.Responder),
		attribute.Bool("all_available", datatypes.AllAvailable(res.Verdicts)),
	)

	p.logger.Info("order processed",
		slog.Int("items", len(order.Items)),
		slog.Bool("all_available", datatypes.AllAvailable(res.Verdicts)),
		slog.String("responder", res.Responder),
		slog.Duration("took", time.Since(start)),
	)
	return res
}

// check matches and evaluates one item.
func (p *Pipeline) check(ctx context.Context, item datatypes.RequestedItem) datatypes.StockVerdict {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.check",
		trace.WithAttributes(
			attribute.String("product", item.Product),
			attribute.String("container", string(item.Container)),
			attribute.Int("quantity", item.Quantity),
		),
	)
	defer span.End()

	var entry *datatypes.CatalogEntry
	candidates, err := p.matcher.Match(ctx, item.Product, item.Container)
	if err != nil {
		lookupErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("catalog lookup failed, reporting item as not found",
			slog.String("product", item.Product),
			slog.String("error", redact.Error(err)),
		)
	} else if len(candidates) > 0 {
		entry = &candidates[0]
	}

	verdict := p.evaluator.Evaluate(item, entry)
	verdictsTotal.WithLabelValues(string(verdict.Status)).Inc()
	span.SetAttributes(attribute.String("status", string(verdict.Status)))
	return verdict
}

// reply tries the generative responder and falls back to the composer.
func (p *Pipeline) reply(ctx context.Context, order datatypes.ParsedOrder, verdicts []datatypes.StockVerdict) (string, string) {
	if p.generative != nil {
		text, err := p.generative.Respond(ctx, order, verdicts)
		if err == nil {
			return text, p.generative.Name()
		}
		reason := fallbackReason(err)
		responderFallbacks.WithLabelValues(reason).Inc()
		p.logger.Warn("generative reply failed, using composer",
			slog.String("reason", reason),
			slog.String("error", redact.Error(err)),
		)
	}
	return p.composer.Compose(order, verdicts), p.composer.Name()
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, respond.ErrEmptyReply):
		return "empty"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Stock lists catalog entries for a free-text product query.
//
// # Description
//
// No container filter applies. An empty query returns the usage text and a
// failed lookup is reported like an empty result.
func (p *Pipeline) Stock(ctx context.Context, query string) StockResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Stock")
	defer span.End()

	query = strings.TrimSpace(query)
	res := StockResult{Query: query, Entries: []datatypes.CatalogEntry{}}
	if query == "" {
		res.Reply = p.composer.Phrases().StockUsage
		return res
	}

	entries, err := p.matcher.Lookup(ctx, query)
	if err != nil {
		lookupErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("stock lookup failed", slog.String("query", query), slog.String("error", redact.Error(err)))
		entries = nil
	}
	if entries != nil {
		res.Entries = entries
	}
	res.Reply = p.composer.StockReport(query, entries)
	return res
}
