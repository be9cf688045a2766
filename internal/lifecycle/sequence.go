// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"context"
	"fmt"

	"github.com/ManuGH/hubcore/internal/extension"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/metrics"
	"github.com/ManuGH/hubcore/internal/task"
	"github.com/ManuGH/hubcore/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// sequence is one startup or shutdown run. It is replaced, never reused;
// continuations compare against c.seq to detect that they are stale.
type sequence struct {
	id       uint64
	phase    phase
	queue    []task.Task
	rollback HubState
	failures int
	span     trace.Span
}

func (c *Coordinator) begin(p phase) {
	if prev := c.seq; prev != nil {
		c.logger.Info().
			Str(log.FieldEvent, "lifecycle.sequence_superseded").
			Str(log.FieldPhase, string(prev.phase)).
			Uint64("sequence", prev.id).
			Msg("sequence superseded")
		metrics.RecordLifecycleSequence(string(prev.phase), "superseded")
		prev.span.SetStatus(codes.Unset, "superseded")
		prev.span.End()
	}

	rollback := StateStopped
	var (
		tasks      []task.Task
		handlerErr error
	)
	switch p {
	case phaseStartup:
		tasks, handlerErr = extension.StartupTasks(c.handlers)
	case phaseShutdown:
		if c.hubUp {
			rollback = StateRunning
		}
		if known := c.roots.Snapshot(); len(known) > 0 {
			tasks, handlerErr = extension.DeletionTasks(c.handlers, c.shutdownDescription(), known)
		}
	}

	c.seqID++
	_, span := c.tracer.Start(context.Background(), "lifecycle."+string(p),
		trace.WithAttributes(telemetry.SequenceAttributes(string(p), len(tasks))...))
	seq := &sequence{id: c.seqID, phase: p, queue: tasks, rollback: rollback, span: span}
	c.seq = seq
	if handlerErr != nil {
		seq.failures++
		span.RecordError(handlerErr)
		c.logger.Error().
			Err(handlerErr).
			Str(log.FieldEvent, "lifecycle.handler_panicked").
			Str(log.FieldPhase, string(p)).
			Msg("lifecycle handler panicked, continuing without its task")
	}

	c.logger.Info().
		Str(log.FieldEvent, "lifecycle.sequence_started").
		Str(log.FieldPhase, string(p)).
		Uint64("sequence", seq.id).
		Int("tasks", len(tasks)).
		Msg("sequence started")
	c.next(seq)
}

func (c *Coordinator) shutdownDescription() string {
	if c.markForRestart {
		return "Restart hub"
	}
	return "Stop hub"
}

// next runs queued tasks until one suspends, the sequence aborts, or the
// queue is exhausted.
func (c *Coordinator) next(seq *sequence) {
	for c.seq == seq {
		if len(seq.queue) == 0 {
			c.complete(seq)
			return
		}
		t := seq.queue[0]
		seq.queue = seq.queue[1:]

		st, err := task.Run(t)
		if err != nil {
			c.panicked(seq, t, err)
			continue
		}
		if st == task.StateRunning {
			c.await(seq, t)
			return
		}
		if !c.outcome(seq, t, st) {
			return
		}
	}
}

// await suspends seq until t reports a terminal state. The listener may
// fire on any goroutine; the continuation is marshalled onto the owner
// executor and runs at most once.
func (c *Coordinator) await(seq *sequence, t task.Task) {
	resumed := false
	var id task.ListenerID
	resume := func() {
		if resumed {
			return
		}
		st := t.State()
		if !st.IsTerminal() {
			return
		}
		resumed = true
		t.RemoveListener(id)
		if c.seq != seq {
			c.logger.Debug().
				Str(log.FieldEvent, "lifecycle.stale_task").
				Str(log.FieldTask, t.Description()).
				Uint64("sequence", seq.id).
				Msg("ignoring completion from superseded sequence")
			return
		}
		if c.outcome(seq, t, st) {
			c.next(seq)
		}
	}

	id = t.AddListener(func(_ task.Task, _, n task.State) {
		if n.IsTerminal() {
			c.exec.Post(resume)
		}
	})
	c.logger.Debug().
		Str(log.FieldEvent, "lifecycle.task_suspended").
		Str(log.FieldPhase, string(seq.phase)).
		Str(log.FieldTask, t.Description()).
		Msg("waiting for task")

	// The task may have finished between Execute and AddListener.
	resume()
}

// outcome applies the result of one task and reports whether the sequence
// should continue.
func (c *Coordinator) outcome(seq *sequence, t task.Task, st task.State) bool {
	for _, w := range t.Warnings() {
		c.logger.Warn().
			Str(log.FieldEvent, "lifecycle.task_warning").
			Str(log.FieldPhase, string(seq.phase)).
			Str(log.FieldTask, t.Description()).
			Msg(w)
	}
	metrics.RecordLifecycleTask(string(seq.phase), st.String())

	switch st {
	case task.StateCompleted:
		return true
	case task.StateCancelled:
		c.abort(seq, t)
		return false
	case task.StateError:
		seq.failures++
		c.logger.Error().
			Err(task.Cause(t)).
			Str(log.FieldEvent, "lifecycle.task_failed").
			Str(log.FieldPhase, string(seq.phase)).
			Str(log.FieldTask, t.Description()).
			Msg("task failed, continuing sequence")
		return true
	default:
		seq.failures++
		c.logger.Error().
			Str(log.FieldEvent, "lifecycle.task_invalid_state").
			Str(log.FieldPhase, string(seq.phase)).
			Str(log.FieldTask, t.Description()).
			Str("state", st.String()).
			Msg("task returned a non-terminal state, treating as failed")
		return true
	}
}

// panicked records a task whose Execute panicked as failed. The sequence
// continues, as it does for any other task error.
func (c *Coordinator) panicked(seq *sequence, t task.Task, err error) {
	seq.failures++
	metrics.RecordLifecycleTask(string(seq.phase), task.StateError.String())
	seq.span.RecordError(err)
	c.logger.Error().
		Err(err).
		Str(log.FieldEvent, "lifecycle.task_panicked").
		Str(log.FieldPhase, string(seq.phase)).
		Str(log.FieldTask, t.Description()).
		Msg("task panicked, continuing sequence")
}

func (c *Coordinator) abort(seq *sequence, t task.Task) {
	dropped := len(seq.queue)
	seq.queue = nil
	c.seq = nil
	c.markForRestart = false

	c.logger.Warn().
		Str(log.FieldEvent, "lifecycle.sequence_aborted").
		Str(log.FieldPhase, string(seq.phase)).
		Str(log.FieldTask, t.Description()).
		Int("dropped_tasks", dropped).
		Str("rollback", seq.rollback.String()).
		Msg("task cancelled, sequence aborted")
	metrics.RecordLifecycleSequence(string(seq.phase), "aborted")
	seq.span.SetAttributes(telemetry.ErrorAttributes("cancelled")...)
	seq.span.SetStatus(codes.Error, "cancelled by "+t.Description())
	seq.span.End()

	c.setState(seq.rollback)
}

func (c *Coordinator) complete(seq *sequence) {
	c.seq = nil
	ctx, cancel := context.WithTimeout(context.Background(), c.hubTimeout)
	defer cancel()

	switch seq.phase {
	case phaseStartup:
		if err := c.initHub(ctx); err != nil {
			c.logger.Error().
				Err(err).
				Str(log.FieldEvent, "lifecycle.init_failed").
				Msg("hub initialisation failed")
			metrics.RecordLifecycleSequence(string(seq.phase), "init_failed")
			seq.span.RecordError(err)
			seq.span.SetStatus(codes.Error, "init failed")
			seq.span.End()
			c.markForRestart = false
			c.setState(StateStopped)
			return
		}
		c.hubUp = true
		c.finish(seq)
		c.setState(StateRunning)
	case phaseShutdown:
		if c.hubUp {
			if err := c.hub.Teardown(ctx); err != nil {
				c.logger.Error().
					Err(err).
					Str(log.FieldEvent, "lifecycle.teardown_failed").
					Msg("hub teardown failed")
				seq.span.RecordError(err)
			}
			c.hubUp = false
			if r, ok := c.roots.(resetter); ok {
				r.Reset()
			}
		}
		c.finish(seq)
		c.setState(StateStopped)
	}

	if c.markForRestart {
		c.markForRestart = false
		c.logger.Info().
			Str(log.FieldEvent, "lifecycle.restarting").
			Msg("restarting hub")
		c.start()
	}
}

func (c *Coordinator) finish(seq *sequence) {
	metrics.RecordLifecycleSequence(string(seq.phase), "completed")
	seq.span.SetAttributes(attribute.String(telemetry.ResultKey, "completed"))
	if seq.failures > 0 {
		seq.span.SetStatus(codes.Error, fmt.Sprintf("%d task(s) failed", seq.failures))
	}
	seq.span.End()
	c.logger.Info().
		Str(log.FieldEvent, "lifecycle.sequence_completed").
		Str(log.FieldPhase, string(seq.phase)).
		Uint64("sequence", seq.id).
		Int("failed_tasks", seq.failures).
		Msg("sequence completed")
}

func (c *Coordinator) initHub(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hub init: %w", task.Recovered(r))
		}
	}()
	return c.hub.Init(ctx)
}
