package server

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
)

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description,omitempty"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

var endpointDescriptions = map[string]string{
	"/api/v1":                         "This document",
	"/api/v1/health":                  "Server health, version and enabled features",
	"/api/v1/scheduler":               "Latest scheduler snapshot (tick, running commands, subsystem owners)",
	"/api/v1/scheduler/cancel/{name}": "Cancel every running command with this name",
	"/api/v1/scheduler/cancel-all":    "Cancel every running command",
	"/api/v1/station":                 "Operator station: enable signal and buttons",
	"/api/v1/runs":                    "Run history. Filters: ?state=, ?program=",
	"/api/v1/runs/{id}":               "Single run",
	"/api/v1/runs/{id}/events":        "Command lifecycle events of a run. Filters: ?command=, ?event=, ?from_tick=",
	"/api/v1/sse/scheduler":           "Scheduler snapshot stream (Server-Sent Events)",
}

// endpoints lists the mounted API routes, one entry per path.
func (s *Server) endpoints() []endpointInfo {
	byPath := map[string]*endpointInfo{}
	chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		path := strings.TrimSuffix(route, "/")
		if !strings.HasPrefix(path, "/api/v1") {
			return nil
		}
		ep, ok := byPath[path]
		if !ok {
			ep = &endpointInfo{Path: path, Description: endpointDescriptions[path]}
			byPath[path] = ep
		}
		if !slices.Contains(ep.Methods, method) {
			ep.Methods = append(ep.Methods, method)
		}
		return nil
	})

	out := make([]endpointInfo, 0, len(byPath))
	for _, ep := range byPath {
		slices.Sort(ep.Methods)
		out = append(out, *ep)
	}
	slices.SortFunc(out, func(a, b endpointInfo) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "botsched API",
		Version:     "v1",
		Description: "Robot command scheduler: live scheduler state, operator controls and run history",
		Endpoints:   s.endpoints(),
	})
}
