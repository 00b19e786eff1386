package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleSSEScheduler streams scheduler snapshots via Server-Sent Events.
// GET /api/v1/sse/scheduler
func (s *Server) handleSSEScheduler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.snapshots == nil {
		respondUnavailable(w, reqID, "scheduler telemetry")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe := s.snapshots.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	if snap, ok := s.snapshots.Latest(); ok {
		if err := sendSSEEvent(w, flusher, "init", snap); err != nil {
			s.logger.Debug("sse client disconnected", "request_id", reqID, "error", err)
			return
		}
	} else {
		fmt.Fprintf(w, ": waiting for first tick\n\n")
		flusher.Flush()
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-updates:
			if !open {
				sendSSEEvent(w, flusher, "complete", map[string]string{"reason": "run ended"})
				return
			}
			if err := sendSSEEvent(w, flusher, "snapshot", snap); err != nil {
				s.logger.Debug("sse client disconnected", "request_id", reqID)
				return
			}
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
