package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/songer666/jobs-ai/internal/handlers"
)

func HealthRoutes(router *chi.Mux, healthHandler *handlers.HealthHandler, metricsHandler http.Handler) {
	router.Get("/healthz", healthHandler.HealthzHandler)
	router.Get("/readyz", healthHandler.ReadyzHandler)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}
}
