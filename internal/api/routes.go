package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/warmup", func(r chi.Router) {
			r.Get("/status", h.GetWarmupStatus)
			r.Get("/schedule", h.GetSchedule)
			r.Get("/logs", h.GetWarmupLogs)
			r.Get("/progress", h.GetProgress)
			r.Get("/cooldown", h.GetCooldown)
			r.Get("/can-send", h.CanSend)
			r.Get("/estimate", h.GetCapacityEstimate)

			r.Post("/start", h.StartWarmup)
			r.Post("/pause", h.PauseWarmup)
			r.Post("/resume", h.ResumeWarmup)
			r.Post("/advance", h.AdvanceWarmupDay)
			r.Put("/day", h.SetWarmupDay)
			r.Post("/reset-counter", h.ResetWarmupCounter)
			r.Post("/reserve", h.ReserveSends)
			r.Post("/sent", h.RecordSent)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Post("/recalculate", h.RecalculateTiers)
			r.Route("/{contactID}", func(r chi.Router) {
				r.Get("/tier", h.GetContactTier)
				r.Post("/events/open", h.RecordContactOpen)
				r.Post("/events/click", h.RecordContactClick)
				r.Post("/events/delivery", h.RecordContactDelivery)
			})
		})

		r.Post("/events", h.IngestEvent)
	})

	return r
}
