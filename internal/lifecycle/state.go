// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

// HubState is the coarse lifecycle state of the hub.
type HubState int32

const (
	StateStopped HubState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s HubState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StateListener is notified synchronously, on the owner executor, after
// every state change.
type StateListener func(old, new HubState)

type phase string

const (
	phaseStartup  phase = "startup"
	phaseShutdown phase = "shutdown"
)
