// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package removal

import "errors"

var (
	// ErrTaskFailed is replied when the deletion task for a root ends in error.
	ErrTaskFailed = errors.New("deletion task failed")

	// ErrTaskCancelled is replied when the deletion task for a root is cancelled.
	ErrTaskCancelled = errors.New("deletion task cancelled")

	// ErrConfirmationDeclined is replied when the user declines a removal.
	ErrConfirmationDeclined = errors.New("root removal declined")

	// ErrServiceUnavailable is replied when the root service cannot be reached.
	ErrServiceUnavailable = errors.New("root service unavailable")

	// ErrUnknownControl is replied to requests for controls the manager does not serve.
	ErrUnknownControl = errors.New("unknown control")

	// ErrShuttingDown is replied to requests that arrive after the executor closed.
	ErrShuttingDown = errors.New("root manager shutting down")
)

var (
	ErrMissingExecutor  = errors.New("executor is required")
	ErrMissingSender    = errors.New("sender is required")
	ErrMissingRoots     = errors.New("roots registry is required")
	ErrMissingComponent = errors.New("manager component is required")
	ErrMissingService   = errors.New("service component is required")
)
