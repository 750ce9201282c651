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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "orderdesk",
		Subsystem: "catalog",
		Name:      "entries",
		Help:      "Number of entries in the published catalog snapshot",
	})

	catalogReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "catalog",
		Name:      "reloads_total",
		Help:      "Catalog snapshot reloads by outcome",
	}, []string{"outcome"})

	catalogBackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: "catalog",
		Name:      "backend_errors_total",
		Help:      "Catalog backend failures by backend and operation",
	}, []string{"backend", "operation"})
)
