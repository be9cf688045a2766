// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package router is the in-process call bus that addresses components by
// path and correlates requests with replies by match id.
package router

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/metrics"
	"github.com/rs/zerolog"
)

// Receiver accepts calls routed to a component. Deliver must not block;
// receivers backed by an actor executor post the call to their mailbox.
type Receiver interface {
	Deliver(call Call)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(call Call)

func (f ReceiverFunc) Deliver(call Call) { f(call) }

// Sender is the part of the router that components send through.
type Sender interface {
	Send(call Call) (Call, error)
}

// Router delivers calls synchronously to the receiver registered for the
// destination component. Because delivery happens inline, calls from one
// sender arrive in the order they were sent.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Receiver

	nextMatchID atomic.Int64
	now         func() time.Time
	logger      zerolog.Logger
}

// Option customises a Router.
type Option func(*Router)

// WithClock overrides the timestamp source for outgoing calls.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger overrides the router logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func New(opts ...Option) *Router {
	r := &Router{
		routes: make(map[string]Receiver),
		now:    time.Now,
		logger: log.WithComponent("router"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register binds component to rcv. The returned function removes the
// binding; calling it more than once is harmless.
func (r *Router) Register(component string, rcv Receiver) (func(), error) {
	if rcv == nil {
		return nil, fmt.Errorf("register %q: receiver is nil", component)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[component]; exists {
		return nil, fmt.Errorf("register %q: %w", component, ErrAddressInUse)
	}
	r.routes[component] = rcv
	r.logger.Debug().
		Str(log.FieldEvent, "router.registered").
		Str(log.FieldAddress, component).
		Msg("component registered")

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.routes[component] == rcv {
				delete(r.routes, component)
			}
			r.mu.Unlock()
		})
	}, nil
}

// Route resolves the receiver responsible for addr.
func (r *Router) Route(addr Address) (Receiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rcv, ok := r.routes[addr.Component()]
	return rcv, ok
}

// Send stamps and delivers call. Requests get a fresh MatchID; replies keep
// theirs. The returned call is the one that was delivered.
func (r *Router) Send(call Call) (Call, error) {
	if call.IsRequest() {
		call.MatchID = r.nextMatchID.Add(1)
	}
	if call.Time.IsZero() {
		call.Time = r.now()
	}

	rcv, ok := r.Route(call.To)
	if !ok {
		metrics.IncRouterUndeliverable(call.Kind.String())
		r.logger.Warn().
			Str(log.FieldEvent, "router.no_route").
			Str(log.FieldTo, call.To.String()).
			Str(log.FieldFrom, call.From.String()).
			Str(log.FieldKind, call.Kind.String()).
			Int64(log.FieldMatchID, call.MatchID).
			Msg("call has no route")
		return call, fmt.Errorf("send to %s: %w", call.To, ErrNoRoute)
	}
	rcv.Deliver(call)
	return call, nil
}

var _ Sender = (*Router)(nil)
