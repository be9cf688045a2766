// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/hubcore/internal/actor"
	"github.com/ManuGH/hubcore/internal/control/http/problem"
	"github.com/ManuGH/hubcore/internal/hub"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/removal"
	"github.com/ManuGH/hubcore/internal/router"
)

// writeJSON writes a JSON response with the given status code.
// If encoding fails the status is already sent, so the error is only logged.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}

// apiError maps a coordinator error onto an HTTP problem.
type apiError struct {
	status int
	typ    string
	title  string
	code   string
}

var errorTable = []struct {
	target error
	apiError
}{
	{removal.ErrConfirmationDeclined, apiError{http.StatusConflict, "roots/declined", "Conflict", "REMOVAL_DECLINED"}},
	{removal.ErrTaskFailed, apiError{http.StatusConflict, "roots/task_failed", "Conflict", "DELETION_TASK_FAILED"}},
	{removal.ErrTaskCancelled, apiError{http.StatusConflict, "roots/task_cancelled", "Conflict", "DELETION_TASK_CANCELLED"}},
	{hub.ErrRootExists, apiError{http.StatusConflict, "roots/exists", "Conflict", "ROOT_EXISTS"}},
	{hub.ErrRootNotFound, apiError{http.StatusNotFound, "roots/not_found", "Not Found", "ROOT_NOT_FOUND"}},
	{router.ErrInvalidArgs, apiError{http.StatusBadRequest, "system/invalid_input", "Bad Request", "INVALID_INPUT"}},
	{removal.ErrServiceUnavailable, apiError{http.StatusServiceUnavailable, "roots/unavailable", "Service Unavailable", "SERVICE_UNAVAILABLE"}},
	{hub.ErrNotRunning, apiError{http.StatusServiceUnavailable, "roots/unavailable", "Service Unavailable", "SERVICE_UNAVAILABLE"}},
	{removal.ErrShuttingDown, apiError{http.StatusServiceUnavailable, "system/shutting_down", "Service Unavailable", "SHUTTING_DOWN"}},
	{actor.ErrClosed, apiError{http.StatusServiceUnavailable, "system/shutting_down", "Service Unavailable", "SHUTTING_DOWN"}},
	{router.ErrNoRoute, apiError{http.StatusServiceUnavailable, "system/no_route", "Service Unavailable", "NO_ROUTE"}},
	{context.DeadlineExceeded, apiError{http.StatusGatewayTimeout, "system/timeout", "Gateway Timeout", "TIMEOUT"}},
}

var errInternal = apiError{http.StatusInternalServerError, "system/internal", "Internal Server Error", "INTERNAL"}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return errInternal
}

// writeError answers r with the problem matching err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	logger := log.WithComponentFromContext(r.Context(), "control")
	ev := logger.Warn()
	if ae.status >= http.StatusInternalServerError && ae.status != http.StatusServiceUnavailable {
		ev = logger.Error()
	}
	ev.Err(err).
		Str(log.FieldEvent, "control.request_failed").
		Int("status", ae.status).
		Str("code", ae.code).
		Msg("control request failed")

	problem.Write(w, r, ae.status, ae.typ, ae.title, ae.code, err.Error(), nil)
}
