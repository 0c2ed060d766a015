package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/tutormatch/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the chi router with the global middleware stack,
// the session API and the /health and /metrics endpoints.
func NewRouter(h *SessionHandler, m *metrics.Metrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)
	r.Use(CORS)
	if m != nil {
		r.Use(Metrics(m))
	}

	r.Get("/health", HealthCheck)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/search", h.SearchSessions)
		r.Post("/{id}/book", h.BookSession)
		r.Post("/{id}/unbook", h.UnbookSession)
	})
	r.Route("/tutors/{email}", func(r chi.Router) {
		r.Get("/schedule", h.TutorSchedule)
		r.Delete("/sessions/{id}", h.DeleteSession)
	})
	r.Get("/students/{email}/schedule", h.StudentSchedule)

	return r
}
