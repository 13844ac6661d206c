// Package api wires the read endpoints behind a chi router.
package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dlnlabs/dln-indexer/internal/api/handlers"
	"github.com/dlnlabs/dln-indexer/internal/api/middleware"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates the Chi router with the logging and recovery middleware
// and all read endpoints.
func NewRouter(store handlers.Analytics, checkpoints handlers.Checkpoints) chi.Router {
	started := time.Now()

	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(middleware.Recover)
	r.Use(middleware.RequestLogging)

	slog.Info("router initialized",
		"middleware", []string{"recover", "requestLogging"},
	)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health(Version, started, checkpoints))
		r.Get("/stats", handlers.Stats(store))
		r.Get("/volumes/daily", handlers.DailyVolumes(store))
		r.Get("/volumes/range", handlers.VolumeRange(store))
	})

	return r
}
