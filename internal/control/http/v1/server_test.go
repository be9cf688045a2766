// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/hubcore/internal/actor"
	"github.com/ManuGH/hubcore/internal/confirm"
	"github.com/ManuGH/hubcore/internal/control/middleware"
	"github.com/ManuGH/hubcore/internal/health"
	"github.com/ManuGH/hubcore/internal/hub"
	"github.com/ManuGH/hubcore/internal/lifecycle"
	"github.com/ManuGH/hubcore/internal/removal"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graph struct {
	handler http.Handler
	lc      *lifecycle.Coordinator
	hub     *hub.Hub
}

func newGraph(t *testing.T, confirmer confirm.Confirmer, limit middleware.RateLimitConfig) *graph {
	t.Helper()
	exec := actor.New("control-test")
	t.Cleanup(exec.Close)
	r := router.New()
	registry := roots.NewRegistry()

	h, err := hub.New(hub.Deps{Executor: exec, Router: r})
	require.NoError(t, err)
	lc, err := lifecycle.New(lifecycle.Deps{Executor: exec, Hub: h, Roots: registry})
	require.NoError(t, err)
	manager, err := removal.New(removal.Deps{
		Executor:  exec,
		Sender:    r,
		Roots:     registry,
		Confirmer: confirmer,
		Component: roots.DefaultManagerComponent,
		Service:   roots.DefaultServiceComponent,
	})
	require.NoError(t, err)
	unregister, err := r.Register(roots.DefaultManagerComponent, manager)
	require.NoError(t, err)
	t.Cleanup(unregister)

	handler, err := NewHandler(Deps{
		Lifecycle:      lc,
		Hub:            h,
		Router:         r,
		Manager:        roots.DefaultManagerComponent,
		RequestTimeout: 2 * time.Second,
		RateLimit:      limit,
		Stack:          middleware.StackConfig{EnableMetrics: true},
	})
	require.NoError(t, err)
	return &graph{handler: handler, lc: lc, hub: h}
}

func (g *graph) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func (g *graph) waitFor(t *testing.T, st lifecycle.HubState) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.lc.WaitFor(ctx, st))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func problemCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	body := decode[map[string]any](t, rec)
	code, _ := body["code"].(string)
	return code
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	require.ErrorIs(t, err, ErrMissingLifecycle)
}

func TestHealthAndReadiness(t *testing.T) {
	g := newGraph(t, confirm.Static(true), middleware.RateLimitConfig{})

	rec := g.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = g.do(t, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ready := decode[health.ReadinessResponse](t, rec)
	assert.False(t, ready.Ready)
	assert.Equal(t, "stopped", ready.Checks["hub_lifecycle"].Message)

	rec = g.do(t, http.MethodPost, "/api/v1/start")
	require.Equal(t, http.StatusAccepted, rec.Code)
	g.waitFor(t, lifecycle.StateRunning)

	rec = g.do(t, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLifecycleAndRootsOverHTTP(t *testing.T) {
	g := newGraph(t, confirm.Static(true), middleware.RateLimitConfig{})

	rec := g.do(t, http.MethodPost, "/api/v1/roots/mixer")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", problemCode(t, rec))

	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, "/api/v1/start").Code)
	g.waitFor(t, lifecycle.StateRunning)

	state := decode[StateResponse](t, g.do(t, http.MethodGet, "/api/v1/state"))
	assert.Equal(t, "running", state.State)
	assert.Equal(t, g.hub.ID(), state.HubID)

	rec = g.do(t, http.MethodPost, "/api/v1/roots/mixer")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "mixer", decode[RootResponse](t, rec).ID)

	rec = g.do(t, http.MethodPost, "/api/v1/roots/mixer")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ROOT_EXISTS", problemCode(t, rec))

	require.Equal(t, http.StatusCreated, g.do(t, http.MethodPost, "/api/v1/roots/synth").Code)
	rec = g.do(t, http.MethodGet, "/api/v1/roots")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mixer", "synth"}, decode[RootsResponse](t, rec).Roots)

	rec = g.do(t, http.MethodDelete, "/api/v1/roots/mixer")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = g.do(t, http.MethodDelete, "/api/v1/roots/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROOT_NOT_FOUND", problemCode(t, rec))

	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, "/api/v1/stop").Code)
	g.waitFor(t, lifecycle.StateStopped)

	rec = g.do(t, http.MethodGet, "/api/v1/roots")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[RootsResponse](t, rec).Roots)
}

func TestDeclinedRemovalIsConflict(t *testing.T) {
	g := newGraph(t, confirm.Static(false), middleware.RateLimitConfig{})
	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, "/api/v1/start").Code)
	g.waitFor(t, lifecycle.StateRunning)
	require.Equal(t, http.StatusCreated, g.do(t, http.MethodPost, "/api/v1/roots/mixer").Code)

	rec := g.do(t, http.MethodDelete, "/api/v1/roots/mixer")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REMOVAL_DECLINED", problemCode(t, rec))
	assert.Equal(t, []string{"mixer"}, decode[RootsResponse](t, g.do(t, http.MethodGet, "/api/v1/roots")).Roots)
}

func TestRestartReturnsToRunning(t *testing.T) {
	g := newGraph(t, confirm.Static(true), middleware.RateLimitConfig{})
	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, "/api/v1/start").Code)
	g.waitFor(t, lifecycle.StateRunning)
	first := g.hub.ID()

	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, "/api/v1/restart").Code)
	assert.Eventually(t, func() bool {
		id := g.hub.ID()
		return g.lc.State() == lifecycle.StateRunning && id != "" && id != first
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMutatingRoutesAreRateLimited(t *testing.T) {
	g := newGraph(t, confirm.Static(true), middleware.RateLimitConfig{RequestLimit: 1, WindowSize: time.Minute})

	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, "/api/v1/start").Code)
	rec := g.do(t, http.MethodPost, "/api/v1/stop")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", problemCode(t, rec))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, g.do(t, http.MethodGet, "/api/v1/state").Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: cleanup", removal.ErrTaskFailed), http.StatusConflict},
		{removal.ErrTaskCancelled, http.StatusConflict},
		{hub.ErrRootExists, http.StatusConflict},
		{hub.ErrRootNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: empty root id", router.ErrInvalidArgs), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", removal.ErrServiceUnavailable, router.ErrNoRoute), http.StatusServiceUnavailable},
		{actor.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("ask: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err).status)
		})
	}
}

type failingLifecycle struct{ err error }

func (f failingLifecycle) Start(context.Context) error   { return f.err }
func (f failingLifecycle) Stop(context.Context) error    { return f.err }
func (f failingLifecycle) Restart(context.Context) error { return f.err }
func (f failingLifecycle) State() lifecycle.HubState     { return lifecycle.StateStopped }

func TestLifecycleSubmitFailure(t *testing.T) {
	handler, err := NewHandler(Deps{
		Lifecycle: failingLifecycle{err: actor.ErrClosed},
		Router:    router.New(),
		Manager:   roots.DefaultManagerComponent,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/start", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SHUTTING_DOWN", problemCode(t, rec))
}
