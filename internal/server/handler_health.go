package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Program   string            `json:"program,omitempty"`
	Tick      uint64            `json:"tick"`
	Disabled  bool              `json:"disabled"`
	Features  map[string]string `json:"features"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Program:   s.program,
		Features: map[string]string{
			"history":   availability(s.store != nil),
			"scheduler": availability(s.snapshots != nil),
			"control":   availability(s.control != nil),
			"station":   availability(s.station != nil),
		},
	}
	if s.snapshots != nil {
		if snap, ok := s.snapshots.Latest(); ok {
			resp.Tick = snap.Tick
			resp.Disabled = snap.Disabled
		}
	}
	respondOK(w, reqID, resp)
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}
