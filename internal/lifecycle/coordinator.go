// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lifecycle drives the hub's coarse state machine and the ordered
// startup and shutdown task sequences contributed by extensions.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/hubcore/internal/actor"
	"github.com/ManuGH/hubcore/internal/extension"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/metrics"
	"github.com/ManuGH/hubcore/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Hub is the object graph built when a startup sequence completes and torn
// down when a shutdown sequence completes.
type Hub interface {
	Init(ctx context.Context) error
	Teardown(ctx context.Context) error
}

// KnownRoots exposes the roots the hub has confirmed as added.
type KnownRoots interface {
	Snapshot() []string
}

// resetter is implemented by registries that forget their roots when the
// hub is torn down.
type resetter interface {
	Reset()
}

// DefaultHubTimeout bounds Hub.Init and Hub.Teardown.
const DefaultHubTimeout = 30 * time.Second

// Deps contains the collaborators of a Coordinator.
type Deps struct {
	Logger   zerolog.Logger
	Executor *actor.Executor
	Hub      Hub
	Handlers extension.Provider
	Roots    KnownRoots

	// Tracer is optional; the global lifecycle tracer is used when nil.
	Tracer trace.Tracer

	// HubTimeout bounds Hub.Init and Hub.Teardown; DefaultHubTimeout when zero.
	HubTimeout time.Duration
}

// Validate checks that the required collaborators are present.
func (d *Deps) Validate() error {
	if d.Executor == nil {
		return ErrMissingExecutor
	}
	if d.Hub == nil {
		return ErrMissingHub
	}
	if d.Roots == nil {
		return ErrMissingRoots
	}
	return nil
}

// Coordinator owns the hub lifecycle state. All state lives on the owner
// executor; the exported methods submit work to it and wait for that work
// to be accepted, not for asynchronous tasks to finish.
//
// Exported methods must not be called from state listeners or from a
// task's Execute, which both run on the owner executor.
type Coordinator struct {
	logger     zerolog.Logger
	exec       *actor.Executor
	hub        Hub
	handlers   extension.Provider
	roots      KnownRoots
	tracer     trace.Tracer
	hubTimeout time.Duration

	// owner-confined
	state          HubState
	markForRestart bool
	hubUp          bool
	seq            *sequence
	seqID          uint64

	current atomic.Int32

	listenersMu   sync.Mutex
	listeners     map[uint64]StateListener
	listenerOrder []uint64
	nextListener  uint64
}

// New creates a Coordinator in StateStopped.
func New(deps Deps) (*Coordinator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	logger := deps.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = log.WithComponent("lifecycle")
	} else {
		logger = logger.With().Str(log.FieldComponent, "lifecycle").Logger()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer(telemetry.LifecycleTracer)
	}
	timeout := deps.HubTimeout
	if timeout <= 0 {
		timeout = DefaultHubTimeout
	}

	metrics.SetHubState(StateStopped.String())
	return &Coordinator{
		logger:     logger,
		exec:       deps.Executor,
		hub:        deps.Hub,
		handlers:   deps.Handlers,
		roots:      deps.Roots,
		tracer:     tracer,
		hubTimeout: timeout,
		state:      StateStopped,
		listeners:  make(map[uint64]StateListener),
	}, nil
}

// Start starts the hub. It is a no-op while starting or running and
// schedules a restart while stopping.
func (c *Coordinator) Start(ctx context.Context) error {
	return c.exec.Do(ctx, c.start)
}

// Stop stops the hub. While already stopping it cancels a pending restart.
func (c *Coordinator) Stop(ctx context.Context) error {
	return c.exec.Do(ctx, c.stop)
}

// Restart stops the hub and starts it again once the shutdown completes.
func (c *Coordinator) Restart(ctx context.Context) error {
	return c.exec.Do(ctx, c.restart)
}

// State returns the current state after all previously submitted work
// has been applied.
func (c *Coordinator) State() HubState {
	_ = c.exec.Sync(context.Background())
	return HubState(c.current.Load())
}

// AddListener registers l for state changes and returns a function that
// removes it.
func (c *Coordinator) AddListener(l StateListener) func() {
	c.listenersMu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = l
	c.listenerOrder = append(c.listenerOrder, id)
	c.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			defer c.listenersMu.Unlock()
			delete(c.listeners, id)
			for i, v := range c.listenerOrder {
				if v == id {
					c.listenerOrder = append(c.listenerOrder[:i], c.listenerOrder[i+1:]...)
					break
				}
			}
		})
	}
}

// WaitFor blocks until the hub reaches target or ctx is done.
func (c *Coordinator) WaitFor(ctx context.Context, target HubState) error {
	reached := make(chan struct{}, 1)
	remove := c.AddListener(func(_, n HubState) {
		if n == target {
			select {
			case reached <- struct{}{}:
			default:
			}
		}
	})
	defer remove()

	var now HubState
	if err := c.exec.Do(ctx, func() { now = c.state }); err != nil {
		return err
	}
	if now == target {
		return nil
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", target, ctx.Err())
	}
}

func (c *Coordinator) start() {
	switch c.state {
	case StateRunning, StateStarting:
		c.logger.Debug().
			Str(log.FieldEvent, "lifecycle.start_ignored").
			Str("state", c.state.String()).
			Msg("start ignored")
	case StateStopping:
		c.markForRestart = true
		c.logger.Info().
			Str(log.FieldEvent, "lifecycle.restart_scheduled").
			Msg("start requested while stopping, restart scheduled")
	case StateStopped:
		c.setState(StateStarting)
		c.begin(phaseStartup)
	}
}

func (c *Coordinator) stop() {
	switch c.state {
	case StateStopped:
		c.logger.Debug().
			Str(log.FieldEvent, "lifecycle.stop_ignored").
			Msg("stop ignored, hub already stopped")
	case StateStopping:
		if c.markForRestart {
			c.markForRestart = false
			c.logger.Info().
				Str(log.FieldEvent, "lifecycle.restart_cancelled").
				Msg("pending restart cancelled")
		}
	default:
		c.setState(StateStopping)
		c.begin(phaseShutdown)
	}
}

func (c *Coordinator) restart() {
	switch c.state {
	case StateStopped:
		c.start()
	case StateStopping:
		c.markForRestart = true
	default:
		c.markForRestart = true
		c.setState(StateStopping)
		c.begin(phaseShutdown)
	}
}

func (c *Coordinator) setState(n HubState) {
	old := c.state
	if old == n {
		return
	}
	c.state = n
	c.current.Store(int32(n))
	metrics.RecordLifecycleTransition(old.String(), n.String())
	c.logger.Info().
		Str(log.FieldEvent, "lifecycle.state_changed").
		Str(log.FieldOldState, old.String()).
		Str(log.FieldNewState, n.String()).
		Msg("hub state changed")

	c.listenersMu.Lock()
	listeners := make([]StateListener, 0, len(c.listenerOrder))
	for _, id := range c.listenerOrder {
		listeners = append(listeners, c.listeners[id])
	}
	c.listenersMu.Unlock()

	for _, l := range listeners {
		l(old, n)
	}
}
