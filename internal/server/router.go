package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/arx-os/vecindex/internal/metrics"
	"github.com/arx-os/vecindex/pkg/vector"
)

// Config configures NewRouter, mirroring the slice of cmd/arx/main.go's
// chi wiring this demo front needs.
type Config struct {
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Collectors *metrics.Collectors
}

// NewRouter builds the chi.Router backing the demo HTTP front: health/ready
// probes are unauthenticated and unmetered; /v1/* requires a bearer token
// and is rate-limited per user, per the teacher's middleware stack
// (cmd/arx/main.go's RequestID/RealIP/Recoverer/Timeout, gateway's
// auth+rate-limit pair).
func NewRouter(ix *vector.Index, cfg Config) chi.Router {
	h := NewHandlers(ix)
	rl := NewRateLimitMiddleware(cfg.RateLimit)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	if cfg.Collectors != nil {
		r.Handle("/metrics", cfg.Collectors.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))
		r.Use(rl.Middleware())

		r.Post("/v1/vectors", h.InsertVector)
		r.Post("/v1/search", h.Search)
		r.Post("/v1/vacuum", h.Vacuum)
		r.Get("/v1/stats", h.Stats)
	})

	return r
}

// NotFound is a small helper for callers wiring this router under a
// mux.Mux that wants a consistent JSON 404 body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}
