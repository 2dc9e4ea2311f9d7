// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for rank resolution and manager operations.
var (
	// resolutionDuration tracks the latency of full resolver passes.
	resolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rankcore_resolution_duration_seconds",
		Help:    "Histogram of full rank resolution pass latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// resolutionRanks records how many ranks the last pass covered.
	resolutionRanks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rankcore_resolution_ranks",
		Help: "Number of ranks covered by the last resolution pass",
	})

	// operationsTotal counts manager operations by operation and outcome.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankcore_operations_total",
		Help: "Total number of rank manager operations",
	}, []string{"operation", "outcome"})
)

// observeResolution records metrics for a completed resolver pass.
func observeResolution(duration time.Duration, rankCount int) {
	resolutionDuration.Observe(duration.Seconds())
	resolutionRanks.Set(float64(rankCount))
}

// recordOperation counts a manager operation outcome.
func recordOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}
