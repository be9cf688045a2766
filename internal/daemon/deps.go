// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/hubcore/internal/config"
	"github.com/ManuGH/hubcore/internal/lifecycle"
	"github.com/rs/zerolog"
)

// HubController is the part of the lifecycle coordinator the daemon drives.
type HubController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	WaitFor(ctx context.Context, target lifecycle.HubState) error
}

// ServerConfig holds the HTTP server settings of the daemon.
type ServerConfig struct {
	ListenAddr      string
	MetricsAddr     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ServerConfigFrom derives the server settings from the application config.
func ServerConfigFrom(cfg config.AppConfig) ServerConfig {
	return ServerConfig{
		ListenAddr:  cfg.ListenAddr,
		MetricsAddr: cfg.MetricsAddr,
		ReadTimeout: cfg.RequestTimeout,
		// Removal requests may wait on deletion tasks; leave headroom above
		// the per-call timeout.
		WriteTimeout:    cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the control API server
	APIHandler http.Handler

	// MetricsHandler is the HTTP handler for Prometheus metrics (if enabled)
	MetricsHandler http.Handler

	// Hub is started once the servers listen and stopped on shutdown.
	Hub HubController
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
