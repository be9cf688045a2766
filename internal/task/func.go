// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package task

import "errors"

// Warner accepts warnings from a running task body.
type Warner interface {
	Warn(format string, args ...any)
}

// Func is a synchronous task: Execute runs fn inline and maps its result
// to a terminal state. nil completes, ErrCancelled cancels, anything else
// is an error.
type Func struct {
	*Base
	fn func(w Warner) error
}

// NewFunc returns a synchronous task running fn.
func NewFunc(description string, fn func(w Warner) error) *Func {
	f := &Func{fn: fn}
	f.Base = NewBase(description, f)
	return f
}

func (f *Func) Execute() State {
	if !f.begin() {
		return f.State()
	}
	var err error
	if f.fn != nil {
		err = f.fn(f.Base)
	}
	switch {
	case err == nil:
		f.SetState(StateCompleted)
	case errors.Is(err, ErrCancelled):
		f.SetState(StateCancelled)
	default:
		f.Fail(err)
	}
	return f.State()
}

// Async is a task that returns StateRunning from Execute and is finished
// later, from any goroutine, through Complete, Fail or Cancel.
type Async struct {
	*Base
	start func(a *Async)
}

// NewAsync returns a task whose start function is invoked by Execute.
// start may finish the task synchronously or hand it off to a goroutine.
func NewAsync(description string, start func(a *Async)) *Async {
	a := &Async{start: start}
	a.Base = NewBase(description, a)
	return a
}

func (a *Async) Execute() State {
	if !a.begin() {
		return a.State()
	}
	a.SetState(StateRunning)
	if a.start != nil {
		a.start(a)
	}
	return a.State()
}

// Complete finishes the task successfully.
func (a *Async) Complete() bool {
	return a.SetState(StateCompleted)
}

// Cancel finishes the task as cancelled.
func (a *Async) Cancel() bool {
	return a.SetState(StateCancelled)
}

var (
	_ Task = (*Func)(nil)
	_ Task = (*Async)(nil)
)
