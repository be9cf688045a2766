// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package router

import (
	"context"
	"fmt"

	"github.com/ManuGH/hubcore/internal/log"
	"github.com/google/uuid"
)

// AskComponentPrefix prefixes the temporary components created by Ask.
const AskComponentPrefix = "/_ask/"

// Ask sends a request to "to" from a temporary component and waits for the
// matching reply. An error reply is returned together with the error it
// carries. The temporary component id is the call's correlation id in logs.
func (r *Router) Ask(ctx context.Context, to Address, args ...any) (Call, error) {
	if ctx == nil {
		return Call{}, fmt.Errorf("ask context is nil")
	}
	correlation := uuid.NewString()
	component := AskComponentPrefix + correlation
	logger := log.WithContext(log.ContextWithCorrelationID(ctx, correlation), r.logger)
	replies := make(chan Call, 4)
	unregister, err := r.Register(component, ReceiverFunc(func(c Call) {
		select {
		case replies <- c:
		default:
		}
	}))
	if err != nil {
		return Call{}, err
	}
	defer unregister()

	sent, err := r.Send(NewRequest(to, NewAddress(component, to.Control()), args...))
	if err != nil {
		return Call{}, err
	}
	logger.Debug().
		Str(log.FieldEvent, "router.ask").
		Str(log.FieldTo, to.String()).
		Int64(log.FieldMatchID, sent.MatchID).
		Msg("waiting for reply")
	for {
		select {
		case reply := <-replies:
			if reply.MatchID != sent.MatchID || !reply.IsReply() {
				continue
			}
			if reply.Kind == KindError {
				return reply, ErrorFromArgs(reply.Args)
			}
			return reply, nil
		case <-ctx.Done():
			logger.Warn().
				Err(ctx.Err()).
				Str(log.FieldEvent, "router.ask_abandoned").
				Str(log.FieldTo, to.String()).
				Int64(log.FieldMatchID, sent.MatchID).
				Msg("no reply before the caller gave up")
			return Call{}, fmt.Errorf("ask %s: %w", to, ctx.Err())
		}
	}
}
