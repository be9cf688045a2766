// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import "errors"

var (
	// ErrMissingExecutor is returned when a coordinator has no owner executor.
	ErrMissingExecutor = errors.New("owner executor is required")

	// ErrMissingHub is returned when a coordinator has nothing to build on startup.
	ErrMissingHub = errors.New("hub is required")

	// ErrMissingRoots is returned when a coordinator cannot see the known roots.
	ErrMissingRoots = errors.New("known roots are required")
)
