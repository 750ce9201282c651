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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lapaisee/orderdesk/services/orders/catalog"
	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/redact"
)

// NamedSink is a catalog sink with a name for logs and metrics.
type NamedSink struct {
	Name string
	Sink catalog.Sink
}

// Report summarises one sync run.
type Report struct {
	Products int           `json:"products"`
	Sinks    []string      `json:"sinks"`
	Failed   []string      `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Syncer copies the shop catalog into the configured sinks.
//
// # Description
//
// A run fetches every product, converts it with ToEntry and saves the full
// list to each sink in order. A fetch failure aborts the run before any
// sink is touched. A sink failure is recorded and the remaining sinks are
// still written; the run then returns the joined sink errors.
//
// # Thread Safety
//
// Runs may execute concurrently, but sinks see interleaved full writes.
// Callers normally serialise runs.
type Syncer struct {
	source Source
	lex    *lexicon.Lexicon
	sinks  []NamedSink
	now    func() time.Time
	logger *slog.Logger
}

// NewSyncer creates a Syncer. A nil logger means slog.Default().
func NewSyncer(source Source, lex *lexicon.Lexicon, sinks []NamedSink, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{source: source, lex: lex, sinks: sinks, now: time.Now, logger: logger}
}

// Run performs one sync.
//
// # Outputs
//
//   - []datatypes.CatalogEntry: The converted catalog, also on sink failure.
//   - Report: Counts and the sinks written.
//   - error: Fetch failure, or the joined sink failures.
func (s *Syncer) Run(ctx context.Context) ([]datatypes.CatalogEntry, Report, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "catalogsync.Syncer.Run")
	defer span.End()

	var report Report
	finish := func(outcome string, err error) {
		report.Duration = time.Since(start)
		syncRuns.WithLabelValues(outcome).Inc()
		syncDuration.Observe(report.Duration.Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, redact.Error(err))
		}
	}

	products, err := s.source.FetchAll(ctx)
	if err != nil {
		err = fmt.Errorf("fetch products: %w", err)
		s.logger.Error("catalog sync fetch failed", slog.String("error", redact.Error(err)))
		finish("fetch_error", err)
		return nil, report, err
	}

	stamp := s.now()
	entries := make([]datatypes.CatalogEntry, 0, len(products))
	for _, p := range products {
		entries = append(entries, ToEntry(s.lex, p, stamp))
	}
	report.Products = len(entries)
	span.SetAttributes(attribute.Int("products", len(entries)))

	var errs []error
	for _, ns := range s.sinks {
		if err := ns.Sink.Save(ctx, entries); err != nil {
			syncSinkErrors.WithLabelValues(ns.Name).Inc()
			s.logger.Error("catalog sync sink failed",
				slog.String("sink", ns.Name),
				slog.String("error", redact.Error(err)),
			)
			report.Failed = append(report.Failed, ns.Name)
			errs = append(errs, fmt.Errorf("sink %s: %w", ns.Name, err))
			continue
		}
		report.Sinks = append(report.Sinks, ns.Name)
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		finish("sink_error", err)
		return entries, report, err
	}

	syncProducts.Set(float64(len(entries)))
	finish("success", nil)
	s.logger.Info("catalog sync complete",
		slog.Int("products", report.Products),
		slog.Any("sinks", report.Sinks),
		slog.Duration("duration", report.Duration),
	)
	return entries, report, nil
}
