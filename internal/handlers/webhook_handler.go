package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/interview"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/utils"
)

// WebhookHandler receives dispatcher deliveries. Both endpoints tolerate
// redelivery; a non-2xx answer is only given when a retry could help.
type WebhookHandler struct {
	service *interview.Service
	logger  *zap.Logger
}

func NewWebhookHandler(service *interview.Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

func (h *WebhookHandler) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	payload := middleware.GetValidatedRequest[*models.EvaluateInterviewPayload](r)

	ev, err := h.service.Evaluate(r.Context(), payload)
	if err != nil {
		h.logger.Error("Evaluation webhook failed", zap.String("interview_id", payload.InterviewID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.WebhookResponse{
			Success: false,
			Message: "evaluation could not be stored",
		})
		return
	}

	switch {
	case ev.Err != nil:
		utils.JSON(w, http.StatusOK, models.WebhookResponse{
			Success: false,
			Message: "evaluation failed, interview completed without a score",
		})
	case ev.Outcome == interview.OutcomeDuplicate:
		utils.JSON(w, http.StatusOK, models.WebhookResponse{
			Success: true,
			Message: "interview already completed",
			Score:   ev.Score,
		})
	default:
		utils.JSON(w, http.StatusOK, models.WebhookResponse{
			Success: true,
			Message: "interview evaluated",
			Score:   ev.Score,
		})
	}
}

func (h *WebhookHandler) AutoEndHandler(w http.ResponseWriter, r *http.Request) {
	payload := middleware.GetValidatedRequest[*models.AutoEndInterviewPayload](r)

	res, err := h.service.AutoEnd(r.Context(), payload.InterviewID)
	if err != nil {
		h.logger.Error("Auto-end webhook failed", zap.String("interview_id", payload.InterviewID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.WebhookResponse{
			Success: false,
			Message: "auto-end could not be applied",
		})
		return
	}

	message := "evaluation dispatched"
	switch {
	case res.Skipped:
		message = "interview not in progress, nothing to do"
	case res.Fallback:
		message = "evaluation could not be scheduled, interview completed"
	}
	utils.JSON(w, http.StatusOK, models.WebhookResponse{Success: true, Message: message})
}
