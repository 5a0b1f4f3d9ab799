// Package server exposes the coordinator over HTTP: Prometheus metrics, a
// health check, a JSON API for reading and writing values, and a websocket
// stream of updates.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"xtherma_bridge/internal/coordinator"
	"xtherma_bridge/internal/journal"
	"xtherma_bridge/internal/registers"
)

// Controller is the part of the coordinator the server uses.
type Controller interface {
	Snapshot() *coordinator.Snapshot
	Lookup(key string) (registers.Descriptor, bool)
	Descriptors() []registers.Descriptor
	Write(ctx context.Context, key string, display float64) error
	RequestRefresh()
	State() coordinator.State
	LastError() error
	Stats() coordinator.Stats
	AddListener(fn func()) (remove func())
}

// WriteLog lists journaled writes.
type WriteLog interface {
	Recent(ctx context.Context, key string, limit int) ([]journal.Entry, error)
}

// Server routes HTTP requests to the coordinator.
type Server struct {
	ctrl    Controller
	writes  WriteLog
	metrics http.Handler
	hub     *Hub
	logger  *slog.Logger
}

// New creates a server. writes and metrics may be nil.
func New(ctrl Controller, writes WriteLog, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		ctrl:    ctrl,
		writes:  writes,
		metrics: metrics,
		logger:  logger,
	}
	s.hub = newHub(logger)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/registers", s.handleRegisters)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/values", func(r chi.Router) {
			r.Get("/", s.handleValues)
			r.Get("/{key}", s.handleValue)
			r.Put("/{key}", s.handleWrite)
		})

		if s.writes != nil {
			r.Get("/writes", s.handleWrites)
		}
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// Start begins broadcasting coordinator updates to websocket clients until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	remove := s.ctrl.AddListener(func() {
		s.hub.Broadcast(s.valueList())
	})

	go func() {
		<-ctx.Done()
		remove()
		s.hub.closeAll()
	}()
}
