// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package removal

import (
	"context"
	"fmt"

	"github.com/ManuGH/hubcore/internal/extension"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/metrics"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/router"
	"github.com/ManuGH/hubcore/internal/task"
	"github.com/ManuGH/hubcore/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Removal outcomes used for metrics and span attributes.
const (
	outcomeRemoved         = "removed"
	outcomeDownstreamError = "downstream_error"
	outcomeDeclined        = "declined"
	outcomeTaskFailed      = "task_failed"
	outcomeTaskCancelled   = "task_cancelled"
	outcomeUnavailable     = "unavailable"
)

func (c *Coordinator) handleRemove(call router.Call) {
	id, err := roots.IDArg(call)
	if err != nil {
		c.relay(call, router.KindError, []any{err})
		return
	}
	logger := c.logger.With().Str(log.FieldRootID, id).Logger()

	if queue, ok := c.pending[id]; ok {
		c.pending[id] = append(queue, call)
		metrics.IncRemovalRequest("queued")
		logger.Debug().
			Str(log.FieldEvent, "removal.queued").
			Int("waiters", len(queue)+1).
			Msg("removal already in flight, request queued")
		return
	}

	c.pending[id] = []router.Call{call}
	metrics.IncRemovalRequest("decided")
	metrics.SetRemovalPending(len(c.pending))
	c.decide(id, call)
}

// decide runs the first claiming deletion task for id, or asks for
// confirmation when no extension claims it.
func (c *Coordinator) decide(id string, first router.Call) {
	_, span := c.tracer.Start(context.Background(), "roots.remove",
		trace.WithAttributes(telemetry.RemovalAttributes(id, "")...))

	tasks, err := extension.DeletionTasks(c.handlers, "Remove root "+id, []string{id})
	if err != nil {
		c.fail(id, fmt.Errorf("%w: %w", ErrTaskFailed, err), outcomeTaskFailed, span)
		return
	}
	if len(tasks) > 1 {
		names := make([]string, len(tasks))
		for i, t := range tasks {
			names[i] = t.Description()
		}
		c.logger.Warn().
			Str(log.FieldEvent, "removal.task_conflict").
			Str(log.FieldRootID, id).
			Strs("tasks", names).
			Msg("several extensions claim the root, running only the first")
	}

	if len(tasks) == 0 {
		confirmed, err := c.confirm(id)
		if err != nil {
			span.SetAttributes(attribute.String(telemetry.DecisionKey, "declined"))
			c.fail(id, fmt.Errorf("%w: %w", ErrConfirmationDeclined, err), outcomeDeclined, span)
			return
		}
		if confirmed {
			span.SetAttributes(attribute.String(telemetry.DecisionKey, "confirmed"))
			c.forwardRemove(id, first, span)
			return
		}
		span.SetAttributes(attribute.String(telemetry.DecisionKey, "declined"))
		c.fail(id, ErrConfirmationDeclined, outcomeDeclined, span)
		return
	}

	t := tasks[0]
	span.SetAttributes(attribute.String(telemetry.DecisionKey, "task"))
	st, err := task.Run(t)
	if err != nil {
		c.fail(id, fmt.Errorf("%w: %s: %w", ErrTaskFailed, t.Description(), err), outcomeTaskFailed, span)
		return
	}
	if st == task.StateRunning {
		c.await(id, first, t, span)
		return
	}
	c.settle(id, first, t, st, span)
}

// confirm asks the confirmer about id. A panicking confirmer counts as a
// refusal.
func (c *Coordinator) confirm(id string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = task.Recovered(r)
		}
	}()
	return c.confirmer.Confirm(fmt.Sprintf("Remove root %s?", id)), nil
}

// await resumes the decision once t is terminal. The listener may fire on
// any goroutine; the continuation runs once, on the owner executor.
func (c *Coordinator) await(id string, first router.Call, t task.Task, span trace.Span) {
	resumed := false
	var lid task.ListenerID
	resume := func() {
		if resumed {
			return
		}
		st := t.State()
		if !st.IsTerminal() {
			return
		}
		resumed = true
		t.RemoveListener(lid)
		c.settle(id, first, t, st, span)
	}
	lid = t.AddListener(func(_ task.Task, _, n task.State) {
		if n.IsTerminal() {
			c.exec.Post(resume)
		}
	})
	c.logger.Debug().
		Str(log.FieldEvent, "removal.task_suspended").
		Str(log.FieldRootID, id).
		Str(log.FieldTask, t.Description()).
		Msg("waiting for deletion task")
	resume()
}

func (c *Coordinator) settle(id string, first router.Call, t task.Task, st task.State, span trace.Span) {
	for _, w := range t.Warnings() {
		c.logger.Warn().
			Str(log.FieldEvent, "removal.task_warning").
			Str(log.FieldRootID, id).
			Str(log.FieldTask, t.Description()).
			Msg(w)
	}
	switch st {
	case task.StateCompleted:
		c.forwardRemove(id, first, span)
	case task.StateCancelled:
		c.fail(id, fmt.Errorf("%w: %s", ErrTaskCancelled, t.Description()), outcomeTaskCancelled, span)
	default:
		err := fmt.Errorf("%w: %s", ErrTaskFailed, t.Description())
		if cause := task.Cause(t); cause != nil {
			err = fmt.Errorf("%w: %s: %w", ErrTaskFailed, t.Description(), cause)
		}
		c.fail(id, err, outcomeTaskFailed, span)
	}
}

func (c *Coordinator) forwardRemove(id string, first router.Call, span trace.Span) {
	sent, err := c.forward(first, roots.ControlRemove)
	if err != nil {
		c.fail(id, err, outcomeUnavailable, span)
		return
	}
	span.SetAttributes(attribute.Int64(telemetry.MatchIDKey, sent.MatchID))
	c.correlations[sent.MatchID] = correlation{control: roots.ControlRemove, root: id, span: span}
}

// fail answers every queued caller for id with err without contacting the
// root service.
func (c *Coordinator) fail(id string, err error, outcome string, span trace.Span) {
	queue := c.take(id)
	c.logger.Warn().
		Err(err).
		Str(log.FieldEvent, "removal.failed").
		Str(log.FieldRootID, id).
		Int("waiters", len(queue)).
		Msg("root removal failed locally")
	metrics.IncRemovalOutcome(outcome)
	span.SetAttributes(attribute.String(telemetry.OutcomeKey, outcome), attribute.Int(telemetry.WaitersKey, len(queue)))
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	span.End()

	args := []any{err}
	for _, req := range queue {
		c.relay(req, router.KindError, args)
	}
}

func (c *Coordinator) resolveRemove(rec correlation, reply router.Call) {
	queue := c.take(rec.root)
	outcome := outcomeRemoved
	if reply.Kind == router.KindResponse {
		if c.roots.Remove(rec.root) {
			c.logger.Info().
				Str(log.FieldEvent, "roots.removed").
				Str(log.FieldRootID, rec.root).
				Msg("root removed")
		}
	} else {
		outcome = outcomeDownstreamError
		err := router.ErrorFromArgs(reply.Args)
		rec.span.RecordError(err)
		rec.span.SetStatus(codes.Error, outcome)
		c.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "removal.downstream_error").
			Str(log.FieldRootID, rec.root).
			Msg("root service rejected removal")
	}
	metrics.IncRemovalOutcome(outcome)
	rec.span.SetAttributes(attribute.String(telemetry.OutcomeKey, outcome), attribute.Int(telemetry.WaitersKey, len(queue)))
	rec.span.End()

	for _, req := range queue {
		c.relay(req, reply.Kind, reply.Args)
	}
}

func (c *Coordinator) take(id string) []router.Call {
	queue := c.pending[id]
	delete(c.pending, id)
	metrics.SetRemovalPending(len(c.pending))
	return queue
}
