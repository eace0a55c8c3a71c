package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"lorawan-pipeline/internal/api/handler"
)

// NewRouter assembles the read-only analytics API.
func NewRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/top-devices", h.GetTopDevices)
			r.Get("/weak-devices", h.GetWeakDevices)
			r.Get("/gateway-stats", h.GetGatewayStats)
			r.Get("/duplicates", h.GetDuplicates)
			r.Get("/high-temperature", h.GetHighTemperature)
			r.Get("/summary", h.GetSummary)
		})
		r.Get("/runs", h.ListRuns)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
