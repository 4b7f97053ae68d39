package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/api/handler"
	mw "github.com/AAKevin8450/aquaticartists-video-sub000/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	analysisHandler *handler.AnalysisHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(time.Minute))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey, logger))

		r.Get("/stats", healthHandler.Stats)
		r.Get("/tiers", analysisHandler.Tiers)
		r.Get("/plan", analysisHandler.Plan)

		r.Post("/analyses", analysisHandler.Submit)
		r.Get("/analyses/{jobID}", analysisHandler.Get)
	})

	return r
}
