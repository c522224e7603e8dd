package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/handlers"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
)

// WebhookPrefix is where dispatcher deliveries arrive.
const WebhookPrefix = "/api/webhook/qstash"

func WebhookRoutes(router *chi.Mux, h *handlers.WebhookHandler, verify func(http.Handler) http.Handler) {
	router.Route(WebhookPrefix, func(r chi.Router) {
		r.Use(verify)
		r.With(middleware.ValidateRequest[*models.EvaluateInterviewPayload]()).Post("/"+dispatch.TargetEvaluateInterview, h.EvaluateHandler)
		r.With(middleware.ValidateRequest[*models.AutoEndInterviewPayload]()).Post("/"+dispatch.TargetAutoEndInterview, h.AutoEndHandler)
	})
}
