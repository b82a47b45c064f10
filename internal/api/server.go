// Package api exposes the daemon coordinator's control surface over
// HTTP+JSON+SSE, the concrete transport SPEC_FULL.md §6 supplies for
// spec.md's "message bus" (explicitly out of scope as a named transport).
// Grounded on the teacher's internal/api/server.go chi router assembly —
// the CORS/middleware stack and route-mounting style survive unchanged;
// the generated oapi-codegen interface it served is dropped in favor of
// plain handlers, since the bus surface here is this repo's own contract
// rather than a schema generated from an OpenAPI document.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lms-scan/lms-scan/internal/daemon"
	"github.com/lms-scan/lms-scan/internal/logging"
	"github.com/lms-scan/lms-scan/internal/service"
)

// Server serves the coordinator's properties/methods/signal surface.
type Server struct {
	coord *daemon.Coordinator
	svc   *service.Service
	log   *logging.Logger
}

func NewServer(coord *daemon.Coordinator, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{coord: coord, svc: service.New(coord), log: log}
}

// Handler returns the assembled chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Client-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)
		r.Post("/scan", s.handleScan)
		r.Post("/stop", s.handleStop)
		r.Post("/write-lock", s.handleWriteLockAcquire)
		r.Delete("/write-lock", s.handleWriteLockRelease)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// NewHTTPServer wraps Handler in an *http.Server with the teacher's own
// timeout defaults (internal/daemon/server.go).
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // /v1/events is a long-lived SSE stream
		IdleTimeout:  60 * time.Second,
	}
}
