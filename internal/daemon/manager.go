// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs the hub process: HTTP servers, the hub lifecycle and
// ordered shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/hubcore/internal/lifecycle"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/rs/zerolog"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting servers, handling shutdown.
type Manager interface {
	// Start starts all configured servers and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down all servers
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)
}

// manager implements the Manager interface.
type manager struct {
	serverCfg ServerConfig
	deps      Deps

	apiServer     *http.Server
	metricsServer *http.Server
	apiAddr       net.Addr

	// Shutdown hooks (LIFO order)
	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

// namedHook represents a shutdown hook with a name for logging
type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager with the given configuration and dependencies.
func NewManager(serverCfg ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if serverCfg.ShutdownTimeout <= 0 {
		serverCfg.ShutdownTimeout = 15 * time.Second
	}

	return &manager{
		serverCfg:     serverCfg,
		deps:          deps,
		logger:        deps.Logger.With().Str(log.FieldComponent, "manager").Logger(),
		shutdownHooks: make([]namedHook, 0),
	}, nil
}

// Start binds the servers, starts the hub and blocks until ctx is cancelled
// or a server fails. Either way the daemon is shut down before returning.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str(log.FieldEvent, "daemon.starting").
		Str("listen", m.serverCfg.ListenAddr).
		Str("metrics", m.serverCfg.MetricsAddr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Msg("Starting daemon manager")

	errChan := make(chan error, 2)

	if m.deps.MetricsHandler != nil {
		if err := m.startMetricsServer(errChan); err != nil {
			return m.abortStart(ctx, fmt.Errorf("failed to start metrics server: %w", err))
		}
	}
	if err := m.startAPIServer(errChan); err != nil {
		return m.abortStart(ctx, fmt.Errorf("failed to start API server: %w", err))
	}

	if m.deps.Hub != nil {
		if err := m.deps.Hub.Start(ctx); err != nil {
			return m.abortStart(ctx, fmt.Errorf("%w: %w", ErrHubStartFailed, err))
		}
	}

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("Server error, initiating shutdown")
		return m.abortStart(ctx, err)
	case <-ctx.Done():
		m.logger.Info().Str(log.FieldEvent, "daemon.shutdown_signal").Msg("Shutdown signal received")
		// Detached but bounded so shutdown completes after the parent is cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

func (m *manager) abortStart(ctx context.Context, err error) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()
	if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
		return fmt.Errorf("startup error and shutdown failure: %w", errors.Join(err, shutdownErr))
	}
	return err
}

// startAPIServer binds the control API listener and serves it in the background.
func (m *manager) startAPIServer(errChan chan<- error) error {
	ln, err := net.Listen("tcp", m.serverCfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerStartFailed, err)
	}
	srv := &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.serverCfg.ReadTimeout,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		WriteTimeout:      m.serverCfg.WriteTimeout,
		IdleTimeout:       m.serverCfg.IdleTimeout,
	}
	m.mu.Lock()
	m.apiServer = srv
	m.apiAddr = ln.Addr()
	m.mu.Unlock()

	go func() {
		m.logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("API server listening (HTTP)")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str(log.FieldEvent, "api.server.failed").
				Msg("API server (HTTP) failed")
			errChan <- fmt.Errorf("API server (HTTP): %w", err)
		}
	}()

	return nil
}

// startMetricsServer starts the Prometheus metrics HTTP server.
func (m *manager) startMetricsServer(errChan chan<- error) error {
	metricsAddr := m.serverCfg.MetricsAddr
	if metricsAddr == "" {
		return nil // Metrics disabled
	}
	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerStartFailed, err)
	}
	srv := &http.Server{
		Handler:           m.deps.MetricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.mu.Lock()
	m.metricsServer = srv
	m.mu.Unlock()

	go func() {
		m.logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("Metrics server listening")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str(log.FieldEvent, "metrics.server.failed").
				Msg("Metrics server failed")
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	return nil
}

// APIAddr returns the bound address of the control API, or nil before Start.
func (m *manager) APIAddr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiAddr
}

// Shutdown stops the daemon in order: the control API stops accepting
// requests, the hub is stopped and awaited, the metrics server closes and
// the shutdown hooks run last-registered first.
func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	apiServer, metricsServer := m.apiServer, m.metricsServer
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Str(log.FieldEvent, "daemon.stopping").Msg("Shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if apiServer != nil {
		m.logger.Debug().Msg("Shutting down API server")
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}

	if m.deps.Hub != nil {
		if err := m.stopHub(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if metricsServer != nil {
		m.logger.Debug().Msg("Shutting down metrics server")
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	m.logger.Debug().Int("hooks", len(hooks)).Msg("Executing shutdown hooks")
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("Shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
		} else {
			m.logger.Debug().
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("Shutdown hook completed")
		}
	}

	if len(errs) > 0 {
		m.logger.Error().
			Int("error_count", len(errs)).
			Msg("Shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("Daemon manager stopped cleanly")
	return nil
}

func (m *manager) stopHub(ctx context.Context) error {
	start := time.Now()
	if err := m.deps.Hub.Stop(ctx); err != nil {
		return fmt.Errorf("hub stop: %w", err)
	}
	if err := m.deps.Hub.WaitFor(ctx, lifecycle.StateStopped); err != nil {
		m.logger.Error().
			Err(err).
			Str(log.FieldEvent, "hub.stop_timeout").
			Dur("duration", time.Since(start)).
			Msg("hub did not reach stopped state")
		return fmt.Errorf("%w: %w", ErrHubStopTimeout, err)
	}
	m.logger.Info().
		Str(log.FieldEvent, "hub.stopped").
		Dur("duration", time.Since(start)).
		Msg("hub stopped")
	return nil
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHooks = append(m.shutdownHooks, namedHook{
		name: name,
		hook: hook,
	})
	m.logger.Debug().Str("hook", name).Msg("Registered shutdown hook")
}
