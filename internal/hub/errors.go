// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hub

import "errors"

var (
	// ErrRootExists is replied to add-root for a live root.
	ErrRootExists = errors.New("root already exists")

	// ErrRootNotFound is replied to remove-root for an unknown root.
	ErrRootNotFound = errors.New("root not found")

	// ErrNotRunning is replied to calls processed after Teardown.
	ErrNotRunning = errors.New("hub is not running")

	ErrMissingExecutor = errors.New("executor is required")
	ErrMissingRouter   = errors.New("router is required")
)
