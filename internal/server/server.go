package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/botsched/internal/store"
	"github.com/me/botsched/pkg/model"
)

// Snapshots supplies scheduler snapshots published by the robot loop.
type Snapshots interface {
	Latest() (model.SchedulerSnapshot, bool)
	Subscribe() (<-chan model.SchedulerSnapshot, func())
}

// Controller forwards operator requests to the robot loop.
type Controller interface {
	CancelByName(ctx context.Context, name string) (int, error)
	CancelAll(ctx context.Context) error
}

// Station exposes operator input state.
type Station interface {
	State() model.StationState
	Apply(model.StationState)
}

// Server is the botsched REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	program   string
	heartbeat time.Duration

	store     store.Store // optional; nil disables run history
	snapshots Snapshots   // optional; nil before a robot loop is attached
	control   Controller  // optional
	station   Station     // optional
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore enables the run history endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithSnapshots sets the snapshot source for /scheduler and the SSE stream.
func WithSnapshots(src Snapshots) Option {
	return func(s *Server) {
		s.snapshots = src
	}
}

// WithController sets the robot loop that receives cancel requests.
func WithController(c Controller) Option {
	return func(s *Server) {
		s.control = c
	}
}

// WithStation sets the operator station exposed at /station.
func WithStation(st Station) Option {
	return func(s *Server) {
		s.station = st
	}
}

// WithProgram records the name of the loaded program for /health.
func WithProgram(name string) Option {
	return func(s *Server) {
		s.program = name
	}
}

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// New creates a new Server with all routes registered.
func New(logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		startTime: time.Now(),
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Scheduler state and operator requests
		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/", s.handleGetScheduler)
			r.Post("/cancel/{name}", s.handleCancelCommand)
			r.Post("/cancel-all", s.handleCancelAll)
		})

		// Operator station
		r.Get("/station", s.handleGetStation)
		r.Put("/station", s.handlePutStation)

		// Run history
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Get("/events", s.handleListRunEvents)
			})
		})

		// SSE endpoints for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/scheduler", s.handleSSEScheduler)
		})
	})
}
