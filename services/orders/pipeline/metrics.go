// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the OTel tracer name for pipeline spans.
const tracerName = "orderdesk.pipeline"

var (
	// runsTotal counts processed messages.
	//
	// Labels:
	//   - outcome: "understood" or "not_understood"
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Processed customer messages by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orderdesk",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "End-to-end processing time of one message",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "pipeline",
		Name:      "verdicts_total",
		Help:      "Item verdicts by status",
	}, []string{"status"})

	// lookupErrors counts similarity lookups that failed and degraded the
	// item to not found.
	lookupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "pipeline",
		Name:      "lookup_errors_total",
		Help:      "Catalog lookups that failed and degraded an item to not found",
	})

	repliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "pipeline",
		Name:      "replies_total",
		Help:      "Replies by responder that produced them",
	}, []string{"responder"})

	// responderFallbacks counts generative failures answered by the composer.
	//
	// Labels:
	//   - reason: "empty", "timeout", "error"
	responderFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "pipeline",
		Name:      "responder_fallbacks_total",
		Help:      "Generative reply failures answered by the deterministic composer",
	}, []string{"reason"})
)
