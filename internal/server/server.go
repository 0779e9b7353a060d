// Package server exposes the document API over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/searchbox/searchbox/internal/config"
	"github.com/searchbox/searchbox/internal/elastic"
	"github.com/searchbox/searchbox/internal/logging"
	"github.com/searchbox/searchbox/internal/monitor"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// HealthSource reports dependency health for /healthz.
type HealthSource interface {
	Status() monitor.Status
}

// Server holds the HTTP handler dependencies.
type Server struct {
	cfg     *config.Config
	store   elastic.Store
	health  HealthSource
	started time.Time
}

// New creates a Server backed by the given store and health source.
func New(cfg *config.Config, store elastic.Store, health HealthSource) *Server {
	return &Server{cfg: cfg, store: store, health: health, started: time.Now()}
}

// Router builds the chi router with all routes configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/search", s.handleSearch)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
	})

	return r
}

// requestLogger logs each request through the global zerolog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Get().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
