package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/interview"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/utils"
)

// writeError maps interview errors onto HTTP responses.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		quotaErr *interview.QuotaExceededError
		capErr   *interview.QuestionCapError
		schedErr *interview.SchedulingError
	)

	switch {
	case errors.Is(err, interview.ErrNotOwner):
		utils.JSON(w, http.StatusForbidden, models.ErrorResponse{
			Code:    "forbidden",
			Message: "You do not have access to this interview",
		})
	case errors.Is(err, interview.ErrNotFound):
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code:    "not_found",
			Message: "Interview not found",
		})
	case errors.Is(err, interview.ErrJobNotFound):
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code:    "job_not_found",
			Message: "Job posting not found",
		})
	case errors.As(err, &quotaErr):
		utils.JSON(w, http.StatusTooManyRequests, models.QuotaErrorResponse{
			Code:      "quota_exceeded",
			Message:   quotaErr.Message,
			Kind:      string(quotaErr.Kind),
			Limit:     quotaErr.Limit,
			Remaining: quotaErr.Remaining,
		})
	case errors.As(err, &capErr):
		utils.JSON(w, http.StatusTooManyRequests, models.QuotaErrorResponse{
			Code:      "question_limit_reached",
			Message:   capErr.Error(),
			Limit:     capErr.Limit,
			Remaining: 0,
		})
	case errors.Is(err, interview.ErrModelUnavailable):
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code:    "model_unavailable",
			Message: "The selected model is not available, please choose another one",
		})
	case errors.Is(err, interview.ErrInvalidState):
		utils.JSON(w, http.StatusConflict, models.ErrorResponse{
			Code:    "invalid_state",
			Message: "This action is not available for the interview in its current state",
		})
	case errors.As(err, &schedErr):
		logger.Error("Scheduling failed", zap.String("target", schedErr.Target), zap.Error(schedErr.Err))
		utils.JSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Code:      "scheduling_failed",
			Message:   "The interview could not be started right now, please try again",
			Retriable: true,
		})
	default:
		logger.Error("Request failed", zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Something went wrong, please try again later",
		})
	}
}

// caller returns the authenticated caller or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	c, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
			Code:    "unauthorized",
			Message: "Please sign in to continue",
		})
	}
	return c, ok
}
