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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "orderdesk.catalogsync"

var (
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Catalog sync runs by outcome",
	}, []string{"outcome"})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orderdesk",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Duration of a full catalog sync",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	syncProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "orderdesk",
		Subsystem: "sync",
		Name:      "products",
		Help:      "Products written by the last successful sync",
	})

	syncSinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "sync",
		Name:      "sink_errors_total",
		Help:      "Sink write failures by sink",
	}, []string{"sink"})
)
