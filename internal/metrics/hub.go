// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HubState exposes the lifecycle state as a one-hot gauge.
	HubState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hubcore_hub_state",
		Help: "Current hub lifecycle state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	LifecycleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubcore_lifecycle_transitions_total",
		Help: "Total number of hub lifecycle state transitions",
	}, []string{"from", "to"})

	LifecycleTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubcore_lifecycle_tasks_total",
		Help: "Total number of lifecycle tasks by phase and outcome",
	}, []string{"phase", "outcome"})

	LifecycleSequencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubcore_lifecycle_sequences_total",
		Help: "Total number of startup/shutdown sequences by result",
	}, []string{"phase", "result"})
)

var hubStates = []string{"stopped", "starting", "running", "stopping"}

// SetHubState marks state as the active lifecycle state.
func SetHubState(state string) {
	for _, s := range hubStates {
		v := 0.0
		if s == state {
			v = 1
		}
		HubState.WithLabelValues(s).Set(v)
	}
}

// RecordLifecycleTransition counts a from -> to transition.
func RecordLifecycleTransition(from, to string) {
	LifecycleTransitionsTotal.WithLabelValues(from, to).Inc()
	SetHubState(to)
}

// RecordLifecycleTask counts a task outcome within a sequence phase.
func RecordLifecycleTask(phase, outcome string) {
	LifecycleTasksTotal.WithLabelValues(orUnknown(phase), orUnknown(outcome)).Inc()
}

// RecordLifecycleSequence counts a finished sequence.
func RecordLifecycleSequence(phase, result string) {
	LifecycleSequencesTotal.WithLabelValues(orUnknown(phase), orUnknown(result)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
