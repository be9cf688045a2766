// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package v1 serves the hub control API.
package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/hubcore/internal/control/middleware"
	"github.com/ManuGH/hubcore/internal/health"
	"github.com/ManuGH/hubcore/internal/lifecycle"
	"github.com/ManuGH/hubcore/internal/router"
	"github.com/go-chi/chi/v5"
)

// Lifecycle is the part of the lifecycle coordinator the API drives.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	State() lifecycle.HubState
}

// HubInfo reports the identity of the running hub incarnation.
type HubInfo interface {
	ID() string
}

// Asker sends a request through the router and waits for its reply.
type Asker interface {
	Ask(ctx context.Context, to router.Address, args ...any) (router.Call, error)
}

// Deps contains the collaborators of the control API.
type Deps struct {
	Lifecycle Lifecycle
	Hub       HubInfo
	Router    Asker

	// Manager is the component path of the root manager.
	Manager string

	// RequestTimeout bounds each call into the coordinators. Zero disables it.
	RequestTimeout time.Duration
	// RateLimit applies to mutating routes when RequestLimit > 0.
	RateLimit middleware.RateLimitConfig

	// Stack configures the ingress middleware.
	Stack middleware.StackConfig

	// Health serves /healthz and /readyz. When nil a manager reporting the
	// lifecycle state is used.
	Health *health.Manager
}

var (
	ErrMissingLifecycle = errors.New("lifecycle is required")
	ErrMissingRouter    = errors.New("router is required")
	ErrMissingManager   = errors.New("manager component is required")
)

// Validate checks that the required collaborators are present.
func (d *Deps) Validate() error {
	switch {
	case d.Lifecycle == nil:
		return ErrMissingLifecycle
	case d.Router == nil:
		return ErrMissingRouter
	case d.Manager == "":
		return ErrMissingManager
	}
	return nil
}

// Server implements the control API handlers.
type Server struct {
	lc      Lifecycle
	hub     HubInfo
	router  Asker
	manager string
	timeout time.Duration
	health  *health.Manager
}

// New creates the control API server.
func New(deps Deps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	hm := deps.Health
	if hm == nil {
		hm = health.NewManager("")
		hm.RegisterChecker(health.NewLifecycleChecker(deps.Lifecycle))
	}
	return &Server{
		health:  hm,
		lc:      deps.Lifecycle,
		hub:     deps.Hub,
		router:  deps.Router,
		manager: deps.Manager,
		timeout: deps.RequestTimeout,
	}, nil
}

// NewHandler builds the routed HTTP handler for deps.
func NewHandler(deps Deps) (http.Handler, error) {
	s, err := New(deps)
	if err != nil {
		return nil, err
	}
	r := middleware.NewRouter(deps.Stack)
	s.Routes(r, deps.RateLimit)
	return r, nil
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router, limit middleware.RateLimitConfig) {
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/roots", s.handleListRoots)

		r.Group(func(r chi.Router) {
			if limit.RequestLimit > 0 {
				r.Use(middleware.RateLimit(limit))
			}
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/restart", s.handleRestart)
			r.Post("/roots/{id}", s.handleAddRoot)
			r.Delete("/roots/{id}", s.handleRemoveRoot)
		})
	})
}

func (s *Server) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Server) managerAddr(control string) router.Address {
	return router.NewAddress(s.manager, control)
}
