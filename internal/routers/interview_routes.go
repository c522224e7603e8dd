package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/songer666/jobs-ai/internal/handlers"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
)

// InterviewRoutes mounts the candidate API. Streaming routes are kept out of the
// request timeout.
func InterviewRoutes(router *chi.Mux, h *handlers.InterviewHandler, auth func(http.Handler) http.Handler, timeout time.Duration) {
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(timeout))

			r.Get("/usage", h.UsageHandler)
			r.Get("/interviews", h.ListHandler)
			r.With(middleware.ValidateRequest[*models.CreateInterviewRequest]()).Post("/interviews", h.CreateHandler)
			r.Get("/interviews/{id}", h.GetHandler)
			r.Delete("/interviews/{id}", h.DeleteHandler)
			r.Post("/interviews/{id}/timer/start", h.StartTimerHandler)
			r.Get("/interviews/{id}/timer", h.ElapsedHandler)
			r.With(middleware.ValidateRequest[*models.CompleteInterviewRequest]()).Post("/interviews/{id}/complete", h.CompleteHandler)
			r.Get("/interviews/{id}/messages", h.MessagesHandler)
			r.With(middleware.ValidateRequest[*models.AppendMessageRequest]()).Post("/interviews/{id}/messages", h.AppendMessageHandler)
		})

		r.With(middleware.ValidateRequest[*models.GenerateQuestionRequest]()).Post("/interviews/{id}/questions", h.QuestionHandler)
		r.With(middleware.ValidateRequest[*models.AnswerFeedbackRequest]()).Post("/interviews/{id}/answers", h.AnswerHandler)
	})
}
