// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for hub spans.
const (
	PhaseKey       = "hub.lifecycle.phase"
	TaskCountKey   = "hub.lifecycle.tasks"
	ResultKey      = "hub.lifecycle.result"
	RootIDKey      = "hub.root.id"
	WaitersKey     = "hub.root.waiters"
	DecisionKey    = "hub.root.decision"
	OutcomeKey     = "hub.root.outcome"
	MatchIDKey     = "hub.call.match_id"
	ErrorKey       = "error"
	ErrorReasonKey = "error.reason"
)

// SequenceAttributes describes a startup or shutdown sequence.
func SequenceAttributes(phase string, tasks int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PhaseKey, phase),
		attribute.Int(TaskCountKey, tasks),
	}
}

// RemovalAttributes describes a root removal decision.
func RemovalAttributes(rootID, decision string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(RootIDKey, rootID)}
	if decision != "" {
		attrs = append(attrs, attribute.String(DecisionKey, decision))
	}
	return attrs
}

// ErrorAttributes flags a span as failed with a short reason.
func ErrorAttributes(reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorReasonKey, reason),
	}
}
