// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package removal implements the root manager: it serialises remove-root
// requests per root id, decides each removal once, forwards it to the
// authoritative root service and answers every queued caller with the
// single outcome.
package removal

import (
	"context"
	"fmt"
	"sort"

	"github.com/ManuGH/hubcore/internal/actor"
	"github.com/ManuGH/hubcore/internal/confirm"
	"github.com/ManuGH/hubcore/internal/extension"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/router"
	"github.com/ManuGH/hubcore/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Deps contains the collaborators of a Coordinator.
type Deps struct {
	Logger   zerolog.Logger
	Executor *actor.Executor
	Sender   router.Sender
	Roots    *roots.Registry
	Handlers extension.Provider

	// Confirmer is asked when no extension claims a root. A nil Confirmer
	// declines every removal.
	Confirmer confirm.Confirmer

	// Component is the manager's own component path; replies from the
	// root service come back to it.
	Component string
	// Service is the component path of the authoritative root service.
	Service string

	Tracer trace.Tracer
}

// Validate checks that the required collaborators are present.
func (d *Deps) Validate() error {
	switch {
	case d.Executor == nil:
		return ErrMissingExecutor
	case d.Sender == nil:
		return ErrMissingSender
	case d.Roots == nil:
		return ErrMissingRoots
	case d.Component == "":
		return ErrMissingComponent
	case d.Service == "":
		return ErrMissingService
	}
	return nil
}

// correlation ties a forwarded call to what it was forwarded for.
type correlation struct {
	control string
	root    string
	// caller is set for add-root passthrough; removals answer the queue.
	caller router.Call
	span   trace.Span
}

// Coordinator is the root manager. All maps are confined to the owner
// executor.
type Coordinator struct {
	logger    zerolog.Logger
	exec      *actor.Executor
	sender    router.Sender
	roots     *roots.Registry
	handlers  extension.Provider
	confirmer confirm.Confirmer
	component string
	service   string
	tracer    trace.Tracer

	pending      map[string][]router.Call
	correlations map[int64]correlation
}

// New creates a root manager.
func New(deps Deps) (*Coordinator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	logger := deps.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = log.WithComponent("removal")
	} else {
		logger = logger.With().Str(log.FieldComponent, "removal").Logger()
	}
	confirmer := deps.Confirmer
	if confirmer == nil {
		confirmer = confirm.Static(false)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer(telemetry.RemovalTracer)
	}
	return &Coordinator{
		logger:       logger,
		exec:         deps.Executor,
		sender:       deps.Sender,
		roots:        deps.Roots,
		handlers:     deps.Handlers,
		confirmer:    confirmer,
		component:    deps.Component,
		service:      deps.Service,
		tracer:       tracer,
		pending:      make(map[string][]router.Call),
		correlations: make(map[int64]correlation),
	}, nil
}

// Component returns the component path the coordinator receives calls on.
func (c *Coordinator) Component() string {
	return c.component
}

// Deliver implements router.Receiver. Requests go to Handle, replies to
// OnDownstreamResponse.
func (c *Coordinator) Deliver(call router.Call) {
	if call.IsReply() {
		c.OnDownstreamResponse(call)
		return
	}
	c.Handle(call)
}

// Handle accepts an inbound request for one of the manager's controls.
func (c *Coordinator) Handle(call router.Call) {
	if c.exec.Post(func() { c.dispatch(call) }) {
		return
	}
	// The executor is gone; answer directly so the caller is not left waiting.
	c.relay(call, router.KindError, []any{ErrShuttingDown})
}

// OnDownstreamResponse accepts a reply from the root service.
func (c *Coordinator) OnDownstreamResponse(call router.Call) {
	c.exec.Post(func() { c.onReply(call) })
}

// OnRootAdded records id as known.
func (c *Coordinator) OnRootAdded(id string) {
	c.exec.Post(func() { c.rootAdded(id) })
}

// PendingRoots returns the root ids with a removal in flight.
func (c *Coordinator) PendingRoots(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.exec.Do(ctx, func() {
		ids = make([]string, 0, len(c.pending))
		for id := range c.pending {
			ids = append(ids, id)
		}
	})
	sort.Strings(ids)
	return ids, err
}

func (c *Coordinator) dispatch(call router.Call) {
	switch ctrl := call.To.Control(); ctrl {
	case roots.ControlRemove:
		c.handleRemove(call)
	case roots.ControlAdd:
		c.handleAdd(call)
	case roots.ControlList:
		c.relay(call, router.KindResponse, []any{c.roots.Snapshot()})
	default:
		c.logger.Warn().
			Str(log.FieldEvent, "removal.unknown_control").
			Str(log.FieldTo, call.To.String()).
			Str(log.FieldFrom, call.From.String()).
			Msg("request for unknown control")
		c.relay(call, router.KindError, []any{fmt.Errorf("%w: %q", ErrUnknownControl, ctrl)})
	}
}

func (c *Coordinator) rootAdded(id string) {
	if c.roots.Add(id) {
		c.logger.Info().
			Str(log.FieldEvent, "roots.added").
			Str(log.FieldRootID, id).
			Msg("root added")
	}
}

func (c *Coordinator) handleAdd(call router.Call) {
	id, err := roots.IDArg(call)
	if err != nil {
		c.relay(call, router.KindError, []any{err})
		return
	}
	_, span := c.tracer.Start(context.Background(), "roots.add",
		trace.WithAttributes(telemetry.RemovalAttributes(id, "")...))

	sent, err := c.forward(call, roots.ControlAdd)
	if err != nil {
		span.RecordError(err)
		span.End()
		c.relay(call, router.KindError, []any{err})
		return
	}
	c.correlations[sent.MatchID] = correlation{control: roots.ControlAdd, root: id, caller: call, span: span}
}

// relay sends one reply to the caller of req. Quiet requests are only
// answered on failure.
func (c *Coordinator) relay(req router.Call, kind router.Kind, args []any) {
	if req.Kind == router.KindQuietRequest && kind == router.KindResponse {
		return
	}
	if _, err := c.sender.Send(req.ReplyWith(kind, args)); err != nil {
		c.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "removal.reply_undeliverable").
			Str(log.FieldTo, req.From.String()).
			Int64(log.FieldMatchID, req.MatchID).
			Msg("caller unreachable, reply dropped")
	}
}

// forward re-sends req to the root service as a request from the manager.
func (c *Coordinator) forward(req router.Call, control string) (router.Call, error) {
	fwd := req.Forward(
		router.NewAddress(c.service, control),
		router.NewAddress(c.component, control),
	)
	// The manager always needs the outcome, even for quiet callers.
	fwd.Kind = router.KindRequest

	sent, err := c.sender.Send(fwd)
	if err != nil {
		return sent, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	c.logger.Debug().
		Str(log.FieldEvent, "removal.forwarded").
		Str(log.FieldTo, sent.To.String()).
		Int64(log.FieldMatchID, sent.MatchID).
		Msg("call forwarded to root service")
	return sent, nil
}

func (c *Coordinator) onReply(call router.Call) {
	rec, ok := c.correlations[call.MatchID]
	if !ok {
		c.logger.Debug().
			Str(log.FieldEvent, "removal.unmatched_reply").
			Int64(log.FieldMatchID, call.MatchID).
			Str(log.FieldFrom, call.From.String()).
			Msg("reply does not match a forwarded call")
		return
	}
	delete(c.correlations, call.MatchID)

	switch rec.control {
	case roots.ControlRemove:
		c.resolveRemove(rec, call)
	case roots.ControlAdd:
		if call.Kind == router.KindResponse {
			c.rootAdded(rec.root)
		} else {
			rec.span.RecordError(router.ErrorFromArgs(call.Args))
		}
		rec.span.End()
		c.relay(rec.caller, call.Kind, call.Args)
	}
}
