// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the external authority bridge.
var (
	// pendingTickets gauges outstanding pending-operation tickets.
	pendingTickets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rankcore_bridge_pending_tickets",
		Help: "Number of outstanding pending-operation tickets",
	})

	// pushesTotal counts outbound pushes by kind and outcome.
	pushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankcore_bridge_pushes_total",
		Help: "Total number of outbound pushes to the external authority",
	}, []string{"kind", "outcome"})

	// inboundEventsTotal counts inbound external events by disposition
	// (echo, applied, unmanaged, unknown_rank).
	inboundEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankcore_bridge_inbound_events_total",
		Help: "Total number of inbound external authority events",
	}, []string{"kind", "disposition"})
)

func recordPush(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pushesTotal.WithLabelValues(kind, outcome).Inc()
}

func recordInbound(kind EntityKind, disposition string) {
	inboundEventsTotal.WithLabelValues(string(kind), disposition).Inc()
}
