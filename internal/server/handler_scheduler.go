package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/botsched/internal/driver"
	"github.com/me/botsched/pkg/model"
)

func (s *Server) handleGetScheduler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.snapshots == nil {
		respondUnavailable(w, reqID, "scheduler telemetry")
		return
	}
	snap, ok := s.snapshots.Latest()
	if !ok {
		respondError(w, reqID, http.StatusNotFound, &model.APIError{
			Code:    model.ErrNotFound,
			Message: "no scheduler tick has completed yet",
		})
		return
	}
	respondOK(w, reqID, snap)
}

func (s *Server) handleCancelCommand(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")
	if s.control == nil {
		respondUnavailable(w, reqID, "robot control")
		return
	}

	n, err := s.control.CancelByName(r.Context(), name)
	if err != nil {
		s.respondControlError(w, reqID, name, err)
		return
	}
	respondAccepted(w, reqID, map[string]any{
		"command":  name,
		"canceled": n,
	})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.control == nil {
		respondUnavailable(w, reqID, "robot control")
		return
	}
	if err := s.control.CancelAll(r.Context()); err != nil {
		s.respondControlError(w, reqID, "", err)
		return
	}
	respondAccepted(w, reqID, map[string]any{"canceled": "all"})
}

func (s *Server) respondControlError(w http.ResponseWriter, reqID, name string, err error) {
	switch {
	case errors.Is(err, driver.ErrNoSuchCommand):
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("running command", name))
	case errors.Is(err, driver.ErrStopped):
		respondError(w, reqID, http.StatusConflict, model.NewConflictError(err.Error()))
	default:
		s.logger.Error("control request failed", "command", name, "error", err)
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
	}
}
