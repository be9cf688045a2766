// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package http holds names shared by the control API packages.
package http

// Canonical Header Names
const (
	// HeaderRequestID is the header carrying the request correlation id.
	HeaderRequestID = "X-Request-ID"
)

// Canonical JSON Field Names
const (
	// JSONKeyRequestID is the JSON key for the request id in responses.
	JSONKeyRequestID = "requestId"
)
