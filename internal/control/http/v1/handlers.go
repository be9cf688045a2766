// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package v1

import (
	"context"
	"net/http"

	"github.com/ManuGH/hubcore/internal/lifecycle"
	"github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/go-chi/chi/v5"
)

// StateResponse describes the hub lifecycle state.
type StateResponse struct {
	State string `json:"state"`
	HubID string `json:"hubId,omitempty"`
}

// RootsResponse lists the known roots.
type RootsResponse struct {
	Roots []string `json:"roots"`
}

// RootResponse acknowledges a root operation.
type RootResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state(s.lc.State()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "start", s.lc.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "stop", s.lc.Stop)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "restart", s.lc.Restart)
}

// transition submits a lifecycle operation and answers 202 with the state
// it produced. The sequences themselves run asynchronously.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context) error) {
	ctx, cancel := s.callContext(r.Context())
	defer cancel()
	if err := fn(ctx); err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "control")
	logger.Info().
		Str(log.FieldEvent, "control.lifecycle").
		Str("operation", op).
		Msg("lifecycle operation accepted")
	writeJSON(w, http.StatusAccepted, s.state(s.lc.State()))
}

func (s *Server) handleListRoots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.callContext(r.Context())
	defer cancel()
	reply, err := s.router.Ask(ctx, s.managerAddr(roots.ControlList))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids := []string{}
	if len(reply.Args) > 0 {
		if v, ok := reply.Args[0].([]string); ok && v != nil {
			ids = v
		}
	}
	writeJSON(w, http.StatusOK, RootsResponse{Roots: ids})
}

func (s *Server) handleAddRoot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := s.callContext(log.ContextWithRootID(r.Context(), id))
	defer cancel()
	if _, err := s.router.Ask(ctx, s.managerAddr(roots.ControlAdd), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RootResponse{ID: id})
}

func (s *Server) handleRemoveRoot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := s.callContext(log.ContextWithRootID(r.Context(), id))
	defer cancel()
	if _, err := s.router.Ask(ctx, s.managerAddr(roots.ControlRemove), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RootResponse{ID: id})
}

func (s *Server) state(st lifecycle.HubState) StateResponse {
	res := StateResponse{State: st.String()}
	if s.hub != nil {
		res.HubID = s.hub.ID()
	}
	return res
}
