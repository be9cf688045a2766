// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/hubcore/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedState lifecycle.HubState

func (s fixedState) State() lifecycle.HubState { return lifecycle.HubState(s) }

func fixed(status Status) Checker {
	return NewCheckerFunc(string(status), func(context.Context) CheckResult {
		return CheckResult{Status: status}
	})
}

func TestLifecycleChecker(t *testing.T) {
	cases := map[lifecycle.HubState]Status{
		lifecycle.StateRunning:  StatusHealthy,
		lifecycle.StateStarting: StatusDegraded,
		lifecycle.StateStopping: StatusDegraded,
		lifecycle.StateStopped:  StatusUnhealthy,
	}
	for st, want := range cases {
		res := NewLifecycleChecker(fixedState(st)).Check(context.Background())
		assert.Equal(t, want, res.Status, st.String())
		assert.Equal(t, st.String(), res.Message)
	}
}

func TestReadyFoldsStatuses(t *testing.T) {
	m := NewManager("v0.1.0")
	assert.True(t, m.Ready(context.Background()).Ready, "no checkers means ready")

	m.RegisterChecker(fixed(StatusHealthy))
	m.RegisterChecker(fixed(StatusDegraded))
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)

	m.RegisterChecker(fixed(StatusUnhealthy))
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestHealthIsAlwaysLive(t *testing.T) {
	m := NewManager("v0.1.0")
	m.now = func() time.Time { return time.Unix(100, 0) }
	m.RegisterChecker(NewLifecycleChecker(fixedState(lifecycle.StateStopped)))

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)
	assert.Equal(t, time.Unix(100, 0), resp.Timestamp)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks, "hub_lifecycle")

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeReady(t *testing.T) {
	m := NewManager("v0.1.0")
	m.RegisterChecker(NewLifecycleChecker(fixedState(lifecycle.StateStopped)))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, "stopped", body.Checks["hub_lifecycle"].Message)
}
