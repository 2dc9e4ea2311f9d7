// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package propagation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// messagesTotal counts consumed change messages by action and disposition
// (applied, offline, own).
var messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rankcore_propagation_messages_total",
	Help: "Total number of rank change messages consumed from the shared channel",
}, []string{"action", "disposition"})

func recordMessage(action, disposition string) {
	messagesTotal.WithLabelValues(action, disposition).Inc()
}
