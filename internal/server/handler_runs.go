package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/botsched/pkg/model"
)

// listOptions reads ?limit= and ?offset= on top of the defaults, capped at
// maxLimit.
func listOptions(r *http.Request, maxLimit int) model.ListOptions {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.ClampTo(maxLimit)
	return opts
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.store == nil {
		respondUnavailable(w, reqID, "run history")
		return
	}

	opts := listOptions(r, model.MaxRunLimit)
	q := r.URL.Query()
	opts.State = q.Get("state")
	opts.Program = q.Get("program")

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	respondList(w, reqID, runs, opts.Page(total))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if s.store == nil {
		respondUnavailable(w, reqID, "run history")
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListRunEvents(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if s.store == nil {
		respondUnavailable(w, reqID, "run history")
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	opts := listOptions(r, model.MaxEventLimit)
	q := r.URL.Query()
	opts.Command = q.Get("command")
	if ev := q.Get("event"); ev != "" {
		opts.Event = model.EventKind(ev)
		if !opts.Event.Valid() {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid event filter",
				model.FieldError{Field: "event", Message: "must be initialize, finish or interrupt"}))
			return
		}
	}
	if v := q.Get("from_tick"); v != "" {
		tick, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid from_tick",
				model.FieldError{Field: "from_tick", Message: "must be a non-negative integer"}))
			return
		}
		opts.FromTick = tick
	}

	events, total, err := s.store.ListEvents(r.Context(), id, opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if events == nil {
		events = []*model.CommandEvent{}
	}
	respondList(w, reqID, events, opts.Page(total))
}
