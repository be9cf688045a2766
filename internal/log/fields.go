// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService       = "service"
	FieldVersion       = "version"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldMatchID       = "match_id"
	FieldRootID        = "root_id"
	FieldHubID         = "hub_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPhase     = "phase"
	FieldTask      = "task"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Routing fields
	FieldTo      = "to"
	FieldFrom    = "from"
	FieldKind    = "kind"
	FieldAddress = "address"
)
