// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hub is the object graph the lifecycle coordinator builds on
// startup: the authoritative root service that owns live roots.
package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ManuGH/hubcore/internal/actor"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/router"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registrar is the part of the router the hub binds its service through.
type Registrar interface {
	router.Sender
	Register(component string, rcv router.Receiver) (func(), error)
}

// Deps contains the collaborators of a Hub.
type Deps struct {
	Logger   zerolog.Logger
	Executor *actor.Executor
	Router   Registrar

	// Component is the service component path; roots.DefaultServiceComponent when empty.
	Component string
}

// Hub owns the live roots. Init and Teardown run on the owner executor,
// called by the lifecycle coordinator; calls to the service are posted to
// the same executor.
type Hub struct {
	logger    zerolog.Logger
	exec      *actor.Executor
	router    Registrar
	component string

	// owner-confined
	live       map[string]struct{}
	unregister func()

	mu sync.RWMutex
	id string
}

// New creates a hub that is not yet initialised.
func New(deps Deps) (*Hub, error) {
	if deps.Executor == nil {
		return nil, fmt.Errorf("invalid dependencies: %w", ErrMissingExecutor)
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("invalid dependencies: %w", ErrMissingRouter)
	}
	component := deps.Component
	if component == "" {
		component = roots.DefaultServiceComponent
	}
	logger := deps.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = log.WithComponent("hub")
	} else {
		logger = logger.With().Str(log.FieldComponent, "hub").Logger()
	}
	return &Hub{
		logger:    logger,
		exec:      deps.Executor,
		router:    deps.Router,
		component: component,
	}, nil
}

// ID returns the instance id of the current incarnation, or "" while the
// hub is down.
func (h *Hub) ID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// Init binds the root service and starts a new incarnation with no roots.
func (h *Hub) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.unregister != nil {
		return nil
	}
	unregister, err := h.router.Register(h.component, h)
	if err != nil {
		return fmt.Errorf("bind root service: %w", err)
	}
	h.unregister = unregister
	h.live = make(map[string]struct{})

	id := uuid.NewString()
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()

	h.logger.Info().
		Str(log.FieldEvent, "hub.initialised").
		Str(log.FieldHubID, id).
		Str(log.FieldAddress, h.component).
		Msg("hub initialised")
	return nil
}

// Teardown unbinds the root service and drops every live root.
func (h *Hub) Teardown(context.Context) error {
	if h.unregister == nil {
		return nil
	}
	h.unregister()
	h.unregister = nil
	dropped := len(h.live)
	h.live = nil

	h.mu.Lock()
	id := h.id
	h.id = ""
	h.mu.Unlock()

	h.logger.Info().
		Str(log.FieldEvent, "hub.torn_down").
		Str(log.FieldHubID, id).
		Int("dropped_roots", dropped).
		Msg("hub torn down")
	return nil
}

// Deliver implements router.Receiver.
func (h *Hub) Deliver(call router.Call) {
	if !call.IsRequest() {
		return
	}
	if !h.exec.Post(func() { h.handle(call) }) {
		h.reply(call, router.KindError, []any{ErrNotRunning})
	}
}

func (h *Hub) handle(call router.Call) {
	if h.live == nil {
		h.reply(call, router.KindError, []any{ErrNotRunning})
		return
	}

	control := call.To.Control()
	if control == roots.ControlList {
		ids := make([]string, 0, len(h.live))
		for id := range h.live {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		h.reply(call, router.KindResponse, []any{ids})
		return
	}

	id, err := roots.IDArg(call)
	if err != nil {
		h.reply(call, router.KindError, []any{err})
		return
	}
	_, exists := h.live[id]

	switch control {
	case roots.ControlAdd:
		if exists {
			h.reply(call, router.KindError, []any{fmt.Errorf("%w: %s", ErrRootExists, id)})
			return
		}
		h.live[id] = struct{}{}
	case roots.ControlRemove:
		if !exists {
			h.reply(call, router.KindError, []any{fmt.Errorf("%w: %s", ErrRootNotFound, id)})
			return
		}
		delete(h.live, id)
	default:
		h.reply(call, router.KindError, []any{fmt.Errorf("%w: unknown control %q", router.ErrInvalidArgs, control)})
		return
	}

	h.logger.Info().
		Str(log.FieldEvent, "hub."+control).
		Str(log.FieldRootID, id).
		Msg("root service applied call")
	h.reply(call, router.KindResponse, []any{id})
}

func (h *Hub) reply(req router.Call, kind router.Kind, args []any) {
	if req.Kind == router.KindQuietRequest && kind == router.KindResponse {
		return
	}
	if _, err := h.router.Send(req.ReplyWith(kind, args)); err != nil {
		h.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "hub.reply_undeliverable").
			Str(log.FieldTo, req.From.String()).
			Msg("reply dropped")
	}
}
