// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package actor provides the single-goroutine owner context that confines
// coordinator state. Every mutation of lifecycle state, pending request
// queues and correlation tables runs as a job on one Executor, so none of
// that state needs its own locking.
package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/hubcore/internal/log"
	"github.com/rs/zerolog"
)

// ErrClosed is returned when work is submitted to a closed executor.
var ErrClosed = errors.New("executor closed")

// Executor runs submitted jobs one at a time, in submission order, on a
// dedicated goroutine. The queue is unbounded so Post never blocks, which
// lets task callbacks post continuations from any goroutine, including the
// owner goroutine itself.
type Executor struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}

	logger zerolog.Logger
}

// New starts an executor. Close must be called to release its goroutine.
func New(name string) *Executor {
	e := &Executor{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: log.WithComponent("actor").With().Str("executor", name).Logger(),
	}
	go e.loop()
	return e
}

// Post enqueues fn and returns immediately. It reports false if the
// executor is already closed.
func (e *Executor) Post(fn func()) bool {
	if fn == nil {
		return true
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// Do enqueues fn and waits until it has run. Everything posted before Do
// has run by the time Do returns, which makes Do usable as a barrier.
//
// Do must not be called from a job running on this executor; it would wait
// for itself.
func (e *Executor) Do(ctx context.Context, fn func()) error {
	if ctx == nil {
		return fmt.Errorf("do context is nil")
	}
	ran := make(chan struct{})
	if !e.Post(func() {
		defer close(ran)
		if fn != nil {
			fn()
		}
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor job: %w", ctx.Err())
	}
}

// Sync waits until every job posted so far has run.
func (e *Executor) Sync(ctx context.Context) error {
	return e.Do(ctx, nil)
}

// Close stops accepting work, drains jobs that were already queued and
// waits for the executor goroutine to exit. It is safe to call more than once.
func (e *Executor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		select {
		case e.wake <- struct{}{}:
		default:
		}
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Executor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		jobs := e.queue
		e.queue = nil
		closed := e.closed
		e.mu.Unlock()

		if len(jobs) == 0 {
			if closed {
				return
			}
			<-e.wake
			continue
		}
		for _, job := range jobs {
			e.run(job)
		}
	}
}

func (e *Executor) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str(log.FieldEvent, "actor.job_panic").
				Interface("panic", r).
				Msg("executor job panicked")
		}
	}()
	job()
}
