// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package task defines the unit of possibly-asynchronous work handed to the
// hub coordinators by extensions.
//
// A Task is executed exactly once. Execute returns promptly with either a
// terminal state or StateRunning; a running task later reports exactly one
// terminal transition to its listeners.
package task

import (
	"errors"
	"fmt"
)

// State is the observable state of a Task.
type State int

const (
	StateNew State = iota
	StateRunning
	StateCompleted
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can follow s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

var (
	// ErrCancelled may be returned by a Func body to end the task as cancelled.
	ErrCancelled = errors.New("task cancelled")

	// ErrAlreadyExecuted is recorded as a warning when Execute is called twice.
	ErrAlreadyExecuted = errors.New("task already executed")

	// ErrPanicked wraps the value recovered from a panicking task or handler.
	ErrPanicked = errors.New("task panicked")
)

// Listener observes state transitions of a task. It is invoked outside the
// task's lock, on whichever goroutine performed the transition.
type Listener func(t Task, old, new State)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Task is a unit of work with an observable state.
type Task interface {
	// Execute starts the task. It must return promptly with a terminal
	// state or StateRunning.
	Execute() State
	State() State
	Description() string
	AddListener(l Listener) ListenerID
	RemoveListener(id ListenerID)
	// Warnings returns the warnings accumulated during execution.
	Warnings() []string
}

// Failure is implemented by tasks that can explain an Error state.
type Failure interface {
	Err() error
}

// Cause returns the error a task ended with, if it exposes one.
func Cause(t Task) error {
	if f, ok := t.(Failure); ok {
		return f.Err()
	}
	return nil
}

// Run executes t and converts a panic into StateError with an error
// wrapping ErrPanicked. Coordinators call tasks through Run so extension
// code cannot unwind the owner executor.
func Run(t Task) (st State, err error) {
	defer func() {
		if r := recover(); r != nil {
			st, err = StateError, Recovered(r)
		}
	}()
	return t.Execute(), nil
}

// Recovered wraps a recovered panic value in ErrPanicked.
func Recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrPanicked, r)
}
