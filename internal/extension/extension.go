// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package extension defines the lifecycle-handler contract through which
// hub extensions contribute tasks to startup, shutdown and root removal.
package extension

import (
	"errors"
	"fmt"

	"github.com/ManuGH/hubcore/internal/task"
)

// Handler contributes deletion work for roots that are about to go away.
// DeletionTask returns nil when the handler has no interest in roots.
type Handler interface {
	DeletionTask(description string, roots []string) task.Task
}

// StartupHandler is implemented by handlers that need to run work before
// the hub object graph is built.
type StartupHandler interface {
	StartupTask() task.Task
}

// Provider enumerates the registered lifecycle handlers in a stable order.
type Provider interface {
	LifecycleHandlers() []Handler
}

// Static is a fixed, ordered Provider.
type Static []Handler

func (s Static) LifecycleHandlers() []Handler {
	return s
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(description string, roots []string) task.Task

func (f HandlerFunc) DeletionTask(description string, roots []string) task.Task {
	return f(description, roots)
}

// DeletionTasks asks every handler for a deletion task for roots and
// returns the non-nil ones in provider order. A handler that panics is
// skipped; its panic is reported in the returned error.
func DeletionTasks(p Provider, description string, roots []string) ([]task.Task, error) {
	if p == nil {
		return nil, nil
	}
	var (
		out  []task.Task
		errs []error
	)
	for i, h := range p.LifecycleHandlers() {
		if h == nil {
			continue
		}
		t, err := collect(i, func() task.Task { return h.DeletionTask(description, roots) })
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if t != nil {
			out = append(out, t)
		}
	}
	return out, errors.Join(errs...)
}

// StartupTasks collects startup tasks from handlers implementing
// StartupHandler, in provider order. Panics are handled as in DeletionTasks.
func StartupTasks(p Provider) ([]task.Task, error) {
	if p == nil {
		return nil, nil
	}
	var (
		out  []task.Task
		errs []error
	)
	for i, h := range p.LifecycleHandlers() {
		sh, ok := h.(StartupHandler)
		if !ok {
			continue
		}
		t, err := collect(i, sh.StartupTask)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if t != nil {
			out = append(out, t)
		}
	}
	return out, errors.Join(errs...)
}

func collect(index int, fn func() task.Task) (t task.Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %d: %w", index, task.Recovered(r))
		}
	}()
	return fn(), nil
}
