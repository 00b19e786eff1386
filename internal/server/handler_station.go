package server

import (
	"encoding/json"
	"net/http"

	"github.com/me/botsched/pkg/model"
)

type stationRequest struct {
	Enabled *bool           `json:"enabled"`
	Buttons map[string]bool `json:"buttons"`
}

func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.station == nil {
		respondUnavailable(w, reqID, "station")
		return
	}
	respondOK(w, reqID, s.station.State())
}

// handlePutStation replaces the station state. Buttons left out of the body
// are released.
func (s *Server) handlePutStation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.station == nil {
		respondUnavailable(w, reqID, "station")
		return
	}

	var req stationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body", model.FieldError{Message: err.Error()}))
		return
	}
	if req.Enabled == nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid station state", model.FieldError{Field: "enabled", Message: "required"}))
		return
	}

	s.station.Apply(model.StationState{Enabled: *req.Enabled, Buttons: req.Buttons})
	s.logger.Info("station updated", "enabled", *req.Enabled, "buttons", len(req.Buttons), "request_id", reqID)
	respondOK(w, reqID, s.station.State())
}
