// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package router

import "errors"

var (
	// ErrNoRoute is returned when no receiver is registered for an address.
	ErrNoRoute = errors.New("no route to address")

	// ErrAddressInUse is returned when registering an already bound component.
	ErrAddressInUse = errors.New("address already registered")

	// ErrInvalidArgs is returned when a call's arguments do not match the control.
	ErrInvalidArgs = errors.New("invalid call arguments")

	// ErrUnknownFailure stands in for error replies without an error argument.
	ErrUnknownFailure = errors.New("unknown failure")
)
