// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemovalRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubcore_root_removal_requests_total",
		Help: "Total number of inbound remove-root requests by disposition (decided, queued)",
	}, []string{"disposition"})

	RemovalOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubcore_root_removal_outcomes_total",
		Help: "Total number of resolved root removals by outcome",
	}, []string{"outcome"})

	RemovalPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubcore_root_removal_pending",
		Help: "Number of root ids with a removal decision or forward in flight",
	})

	RouterUndeliverableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubcore_router_undeliverable_total",
		Help: "Total number of calls that could not be routed, by call kind",
	}, []string{"kind"})
)

// IncRemovalRequest records an inbound remove-root request.
func IncRemovalRequest(disposition string) {
	RemovalRequestsTotal.WithLabelValues(orUnknown(disposition)).Inc()
}

// IncRemovalOutcome records how a removal was resolved.
func IncRemovalOutcome(outcome string) {
	RemovalOutcomesTotal.WithLabelValues(orUnknown(outcome)).Inc()
}

// SetRemovalPending publishes the number of in-flight removals.
func SetRemovalPending(n int) {
	RemovalPending.Set(float64(n))
}

// IncRouterUndeliverable records a call without a route.
func IncRouterUndeliverable(kind string) {
	RouterUndeliverableTotal.WithLabelValues(orUnknown(kind)).Inc()
}
