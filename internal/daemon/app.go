// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/hubcore/internal/log"
	"github.com/rs/zerolog"
)

// Restarter restarts the hub.
type Restarter interface {
	Restart(ctx context.Context) error
}

// ConfigWatcher reloads configuration until ctx is done.
type ConfigWatcher interface {
	Watch(ctx context.Context) error
}

// App owns the long-lived runtime (config watcher, restart signal wiring)
// and delegates server management to Manager.
type App struct {
	logger        zerolog.Logger
	manager       Manager
	hub           Restarter
	watcher       ConfigWatcher
	restartSignal os.Signal
}

// NewApp creates a new App orchestrator. A SIGHUP restarts hub; watcher
// may be nil.
func NewApp(logger zerolog.Logger, manager Manager, hub Restarter, watcher ConfigWatcher) *App {
	return &App{
		logger:        logger,
		manager:       manager,
		hub:           hub,
		watcher:       watcher,
		restartSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)
	// Stops the watcher and signal loop once the manager returns.
	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()

	// Config watcher is best-effort: a failure is logged, not fatal.
	if a.watcher != nil {
		g.Go(func() error {
			if err := a.watcher.Watch(loopCtx); err != nil {
				a.logger.Warn().
					Err(err).
					Str(log.FieldEvent, "config.watcher_failed").
					Msg("config watcher stopped with error")
			}
			return nil
		})
	}

	if a.hub != nil && a.restartSignal != nil {
		hupChan := make(chan os.Signal, 1)
		signal.Notify(hupChan, a.restartSignal)
		g.Go(func() error {
			defer signal.Stop(hupChan)
			for {
				select {
				case <-loopCtx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "hub.restart_signal").
						Str("signal", a.restartSignal.String()).
						Msg("received restart signal, restarting hub")

					if err := a.hub.Restart(loopCtx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "hub.restart_failed").
							Msg("hub restart failed")
					}
				}
			}
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		defer stopLoop()
		return a.manager.Start(gctx)
	})

	return g.Wait()
}
