// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/hubcore/internal/actor"
	"github.com/ManuGH/hubcore/internal/extension"
	"github.com/ManuGH/hubcore/internal/metrics"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/task"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeHub struct {
	mu        sync.Mutex
	inits     int
	teardowns int
	initErr   error
	initPanic bool
}

func (h *fakeHub) Init(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initPanic {
		panic("graph construction exploded")
	}
	if h.initErr != nil {
		return h.initErr
	}
	h.inits++
	return nil
}

func (h *fakeHub) Teardown(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.teardowns++
	return nil
}

func (h *fakeHub) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inits, h.teardowns
}

// handler is a lifecycle handler built from optional functions.
type handler struct {
	deletion func(desc string, roots []string) task.Task
	startup  func() task.Task
}

func (h handler) DeletionTask(desc string, roots []string) task.Task {
	if h.deletion == nil {
		return nil
	}
	return h.deletion(desc, roots)
}

func (h handler) StartupTask() task.Task {
	if h.startup == nil {
		return nil
	}
	return h.startup()
}

// startupQueue hands out the given tasks, one per startup sequence.
func startupQueue(tasks ...task.Task) func() task.Task {
	var mu sync.Mutex
	return func() task.Task {
		mu.Lock()
		defer mu.Unlock()
		if len(tasks) == 0 {
			return nil
		}
		t := tasks[0]
		tasks = tasks[1:]
		return t
	}
}

type transition struct{ From, To HubState }

type fixture struct {
	c        *Coordinator
	hub      *fakeHub
	exec     *actor.Executor
	registry *roots.Registry

	mu          sync.Mutex
	transitions []transition
}

func newFixture(t *testing.T, handlers extension.Provider, known ...string) *fixture {
	t.Helper()
	exec := actor.New("lifecycle-test")
	t.Cleanup(exec.Close)

	registry := roots.NewRegistry()
	for _, id := range known {
		registry.Add(id)
	}
	f := &fixture{hub: &fakeHub{}, exec: exec, registry: registry}

	c, err := New(Deps{
		Executor: exec,
		Hub:      f.hub,
		Handlers: handlers,
		Roots:    registry,
	})
	require.NoError(t, err)
	f.c = c
	c.AddListener(func(old, n HubState) {
		f.mu.Lock()
		f.transitions = append(f.transitions, transition{old, n})
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) history() []transition {
	f.c.State()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transition, len(f.transitions))
	copy(out, f.transitions)
	return out
}

func (f *fixture) resetHistory() {
	f.c.State()
	f.mu.Lock()
	f.transitions = nil
	f.mu.Unlock()
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, counter.Write(m))
	return m.GetCounter().GetValue()
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{})
	require.ErrorIs(t, err, ErrMissingExecutor)

	exec := actor.New("deps")
	defer exec.Close()
	_, err = New(Deps{Executor: exec})
	require.ErrorIs(t, err, ErrMissingHub)
	_, err = New(Deps{Executor: exec, Hub: &fakeHub{}})
	require.ErrorIs(t, err, ErrMissingRoots)
}

func TestStartWithoutTasksReachesRunning(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.c.Start(ctx(t)))
	assert.Equal(t, StateRunning, f.c.State())

	want := []transition{{StateStopped, StateStarting}, {StateStarting, StateRunning}}
	if diff := cmp.Diff(want, f.history()); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	inits, _ := f.hub.counts()
	assert.Equal(t, 1, inits)
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.c.Start(ctx(t)))
	require.NoError(t, f.c.Start(ctx(t)))

	inits, _ := f.hub.counts()
	assert.Equal(t, 1, inits)
	assert.Len(t, f.history(), 2)
}

func TestStopRunsDeletionTasksForKnownRoots(t *testing.T) {
	var gotDesc string
	var gotRoots []string
	h := handler{deletion: func(desc string, r []string) task.Task {
		gotDesc, gotRoots = desc, r
		return task.NewFunc("stop audio", nil)
	}}
	f := newFixture(t, extension.Static{h}, "synth", "mixer")

	require.NoError(t, f.c.Start(ctx(t)))
	require.NoError(t, f.c.Stop(ctx(t)))

	assert.Equal(t, StateStopped, f.c.State())
	assert.Equal(t, "Stop hub", gotDesc)
	assert.Equal(t, []string{"mixer", "synth"}, gotRoots)
	_, teardowns := f.hub.counts()
	assert.Equal(t, 1, teardowns)
}

func TestStopWithoutKnownRootsSkipsHandlers(t *testing.T) {
	asked := false
	h := handler{deletion: func(string, []string) task.Task {
		asked = true
		return nil
	}}
	f := newFixture(t, extension.Static{h})

	require.NoError(t, f.c.Start(ctx(t)))
	require.NoError(t, f.c.Stop(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
	assert.False(t, asked)
}

func TestStopWhenStoppedIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.c.Stop(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
	assert.Empty(t, f.history())
}

func TestRestartCoalescing(t *testing.T) {
	shutdown := task.NewAsync("flush audio", nil)
	startups := 0
	h := handler{
		deletion: func(string, []string) task.Task { return shutdown },
		startup: func() task.Task {
			startups++
			return nil
		},
	}
	f := newFixture(t, extension.Static{h}, "mixer")

	require.NoError(t, f.c.Start(ctx(t)))
	f.resetHistory()

	require.NoError(t, f.c.Stop(ctx(t)))
	require.NoError(t, f.c.Restart(ctx(t)))
	require.NoError(t, f.c.Restart(ctx(t)))
	assert.Equal(t, StateStopping, f.c.State())

	shutdown.Complete()
	assert.Equal(t, StateRunning, f.c.State())

	want := []transition{
		{StateRunning, StateStopping},
		{StateStopping, StateStopped},
		{StateStopped, StateStarting},
		{StateStarting, StateRunning},
	}
	if diff := cmp.Diff(want, f.history()); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, startups, "initial startup plus exactly one restart")
	inits, teardowns := f.hub.counts()
	assert.Equal(t, 2, inits)
	assert.Equal(t, 1, teardowns)
}

func TestRestartAfterStopWithMixedShutdownTasks(t *testing.T) {
	first := task.NewFunc("save patches", nil)
	second := task.NewAsync("stop audio engine", nil)
	h := handler{deletion: func(string, []string) task.Task { return first }}
	h2 := handler{deletion: func(string, []string) task.Task { return second }}
	f := newFixture(t, extension.Static{h, h2}, "mixer")

	require.NoError(t, f.c.Start(ctx(t)))
	f.resetHistory()

	require.NoError(t, f.c.Stop(ctx(t)))
	assert.Equal(t, task.StateCompleted, first.State())
	assert.Equal(t, StateStopping, f.c.State())

	require.NoError(t, f.c.Restart(ctx(t)))
	go second.Complete()
	require.NoError(t, f.c.WaitFor(ctx(t), StateRunning))

	want := []transition{
		{StateRunning, StateStopping},
		{StateStopping, StateStopped},
		{StateStopped, StateStarting},
		{StateStarting, StateRunning},
	}
	if diff := cmp.Diff(want, f.history()); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestSecondStopCancelsPendingRestart(t *testing.T) {
	shutdown := task.NewAsync("flush", nil)
	f := newFixture(t, extension.Static{handler{deletion: func(string, []string) task.Task { return shutdown }}}, "mixer")

	require.NoError(t, f.c.Start(ctx(t)))
	require.NoError(t, f.c.Restart(ctx(t)))
	require.NoError(t, f.c.Stop(ctx(t)))

	shutdown.Complete()
	assert.Equal(t, StateStopped, f.c.State())
	inits, _ := f.hub.counts()
	assert.Equal(t, 1, inits, "no follow-up start")
}

func TestStartWhileStoppingSchedulesRestart(t *testing.T) {
	shutdown := task.NewAsync("flush", nil)
	f := newFixture(t, extension.Static{handler{deletion: func(string, []string) task.Task { return shutdown }}}, "mixer")

	require.NoError(t, f.c.Start(ctx(t)))
	require.NoError(t, f.c.Stop(ctx(t)))
	require.NoError(t, f.c.Start(ctx(t)))
	shutdown.Complete()

	assert.Equal(t, StateRunning, f.c.State())
}

func TestRestartWhenStoppedStarts(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.c.Restart(ctx(t)))
	assert.Equal(t, StateRunning, f.c.State())
}

func TestStartupCancellationRollsBackToStopped(t *testing.T) {
	later := task.NewFunc("never runs", nil)
	h1 := handler{startup: startupQueue(task.NewFunc("licence check", func(task.Warner) error { return task.ErrCancelled }))}
	h2 := handler{startup: startupQueue(later)}
	f := newFixture(t, extension.Static{h1, h2})

	require.NoError(t, f.c.Start(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
	assert.Equal(t, task.StateNew, later.State())
	inits, _ := f.hub.counts()
	assert.Zero(t, inits)
}

func TestShutdownCancellationRollsBackToRunning(t *testing.T) {
	asking := task.NewAsync("ask to save", nil)
	later := task.NewFunc("never runs", nil)
	shutdowns := 0
	h1 := handler{deletion: func(string, []string) task.Task {
		shutdowns++
		if shutdowns > 1 {
			return nil
		}
		return asking
	}}
	h2 := handler{deletion: func(string, []string) task.Task {
		if shutdowns > 1 {
			return nil
		}
		return later
	}}
	f := newFixture(t, extension.Static{h1, h2}, "mixer")

	require.NoError(t, f.c.Start(ctx(t)))
	require.NoError(t, f.c.Restart(ctx(t)))
	asking.Cancel()

	assert.Equal(t, StateRunning, f.c.State())
	assert.Equal(t, task.StateNew, later.State())
	_, teardowns := f.hub.counts()
	assert.Zero(t, teardowns)

	// The aborted restart must not fire once the hub is stopped later.
	require.NoError(t, f.c.Stop(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
}

func TestTaskErrorIsNotFatal(t *testing.T) {
	failing := task.NewFunc("broken extension", func(task.Warner) error { return errors.New("no device") })
	warned := task.NewFunc("noisy extension", func(w task.Warner) error {
		w.Warn("sample rate fallback")
		return nil
	})
	f := newFixture(t, extension.Static{
		handler{startup: startupQueue(failing)},
		handler{startup: startupQueue(warned)},
	})

	before := getCounterValue(t, metrics.LifecycleTasksTotal.WithLabelValues("startup", "error"))
	require.NoError(t, f.c.Start(ctx(t)))

	assert.Equal(t, StateRunning, f.c.State())
	assert.Equal(t, task.StateCompleted, warned.State())
	after := getCounterValue(t, metrics.LifecycleTasksTotal.WithLabelValues("startup", "error"))
	assert.Equal(t, before+1, after)
}

func TestInitFailureForcesStopped(t *testing.T) {
	f := newFixture(t, nil)
	f.hub.initErr = errors.New("port in use")

	require.NoError(t, f.c.Start(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
}

func TestInitPanicForcesStopped(t *testing.T) {
	f := newFixture(t, nil)
	f.hub.initPanic = true

	require.NoError(t, f.c.Start(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
}

func TestPanickingStartupTaskIsNotFatal(t *testing.T) {
	exploding := task.NewFunc("load firmware", func(task.Warner) error { panic("bad checksum") })
	after := task.NewFunc("open ports", nil)
	f := newFixture(t, extension.Static{
		handler{startup: startupQueue(exploding)},
		handler{startup: startupQueue(after)},
	})

	before := getCounterValue(t, metrics.LifecycleTasksTotal.WithLabelValues("startup", "error"))
	require.NoError(t, f.c.Start(ctx(t)))

	assert.Equal(t, StateRunning, f.c.State())
	assert.Equal(t, task.StateCompleted, after.State())
	inits, _ := f.hub.counts()
	assert.Equal(t, 1, inits)
	assert.Equal(t, before+1, getCounterValue(t, metrics.LifecycleTasksTotal.WithLabelValues("startup", "error")))

	// The hub is not wedged: a stop completes normally.
	require.NoError(t, f.c.Stop(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
}

func TestPanickingHandlerDoesNotBlockSequences(t *testing.T) {
	release := task.NewFunc("release device", nil)
	f := newFixture(t, extension.Static{
		handler{
			startup:  func() task.Task { panic("plugin init") },
			deletion: func(string, []string) task.Task { panic("plugin teardown") },
		},
		handler{deletion: func(string, []string) task.Task { return release }},
	}, "mixer")

	require.NoError(t, f.c.Start(ctx(t)))
	assert.Equal(t, StateRunning, f.c.State())

	require.NoError(t, f.c.Stop(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())
	assert.Equal(t, task.StateCompleted, release.State())
}

func TestStaleStartupCompletionIsIgnored(t *testing.T) {
	slow := task.NewAsync("scan devices", nil)
	f := newFixture(t, extension.Static{handler{startup: startupQueue(slow)}})

	require.NoError(t, f.c.Start(ctx(t)))
	assert.Equal(t, StateStarting, f.c.State())

	require.NoError(t, f.c.Stop(ctx(t)))
	assert.Equal(t, StateStopped, f.c.State())

	slow.Complete()
	assert.Equal(t, StateStopped, f.c.State())
	inits, teardowns := f.hub.counts()
	assert.Zero(t, inits)
	assert.Zero(t, teardowns)
}

// racyTask reports Running from Execute although it has already finished.
type racyTask struct {
	*task.Base
}

func newRacyTask() *racyTask {
	r := &racyTask{}
	r.Base = task.NewBase("racy", r)
	return r
}

func (r *racyTask) Execute() task.State {
	r.SetState(task.StateRunning)
	r.SetState(task.StateCompleted)
	return task.StateRunning
}

func TestTaskFinishedBeforeListenerAttachedStillResumes(t *testing.T) {
	f := newFixture(t, extension.Static{handler{startup: startupQueue(newRacyTask())}})

	require.NoError(t, f.c.Start(ctx(t)))
	assert.Equal(t, StateRunning, f.c.State())
	inits, _ := f.hub.counts()
	assert.Equal(t, 1, inits)
}

func TestWaitForTimesOut(t *testing.T) {
	f := newFixture(t, nil)
	c, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.c.WaitFor(c, StateRunning)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, f.c.WaitFor(ctx(t), StateStopped))
}

func TestRemovedListenerIsNotCalled(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	remove := f.c.AddListener(func(HubState, HubState) { calls++ })
	remove()
	remove()

	require.NoError(t, f.c.Start(ctx(t)))
	f.c.State()
	assert.Zero(t, calls)
}

func TestSequencesAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	exec := actor.New("traced")
	t.Cleanup(exec.Close)
	c, err := New(Deps{
		Executor: exec,
		Hub:      &fakeHub{},
		Roots:    roots.NewRegistry(),
		Tracer:   tp.Tracer("test"),
	})
	require.NoError(t, err)

	require.NoError(t, c.Start(ctx(t)))
	require.NoError(t, c.Stop(ctx(t)))
	c.State()

	ended := sr.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "lifecycle.startup", ended[0].Name())
	assert.Equal(t, "lifecycle.shutdown", ended[1].Name())
}

func TestHubStateString(t *testing.T) {
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", HubState(9).String())
}
