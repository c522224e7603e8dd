package handlers

import (
	"iter"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/interview"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/utils"
)

type InterviewHandler struct {
	service *interview.Service
	logger  *zap.Logger
}

func NewInterviewHandler(service *interview.Service, logger *zap.Logger) *InterviewHandler {
	return &InterviewHandler{service: service, logger: logger}
}

func (h *InterviewHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := h.service.List(r.Context(), c)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, models.InterviewListResponse{Interviews: list})
}

func (h *InterviewHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.CreateInterviewRequest](r)

	iv, err := h.service.Create(r.Context(), c, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusCreated, iv)
}

func (h *InterviewHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	iv, err := h.service.Get(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, iv)
}

func (h *InterviewHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), c, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InterviewHandler) UsageHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	usage, err := h.service.Usage(r.Context(), c)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, usage)
}

func (h *InterviewHandler) StartTimerHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := h.service.StartTimer(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, models.TimerStartResponse{
		StartTime:      res.Start.UnixMilli(),
		ElapsedTime:    int64(res.Elapsed.Seconds()),
		AlreadyStarted: res.AlreadyStarted,
	})
}

func (h *InterviewHandler) ElapsedHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	el, err := h.service.Elapsed(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, models.ElapsedResponse{
		ElapsedTime: int64(el.Elapsed.Seconds()),
		MaxDuration: int64(el.Max.Seconds()),
		Exceeded:    el.Exceeded,
	})
}

// QuestionHandler streams the next question as chunked plain text. The question
// number and stage are sent as headers before the first chunk.
func (h *InterviewHandler) QuestionHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	req := middleware.GetValidatedRequest[*models.GenerateQuestionRequest](r)

	qs, err := h.service.GenerateQuestion(r.Context(), c, id, req.Difficulty)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("X-Question-Number", strconv.Itoa(qs.Number))
	w.Header().Set("X-Question-Stage", qs.Stage)
	h.stream(w, qs.Chunks(), zap.String("interview_id", id), zap.Int("question", qs.Number))
}

// AnswerHandler streams feedback on a single answer.
func (h *InterviewHandler) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	req := middleware.GetValidatedRequest[*models.AnswerFeedbackRequest](r)

	chunks, err := h.service.AnswerFeedback(r.Context(), c, id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.stream(w, chunks, zap.String("interview_id", id))
}

func (h *InterviewHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.CompleteInterviewRequest](r)

	res, err := h.service.RequestCompletion(r.Context(), c, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	message := "Interview completed, your evaluation is being prepared"
	if res.Fallback {
		message = "Interview completed, but the evaluation could not be scheduled"
	}
	utils.JSON(w, http.StatusOK, models.CompleteInterviewResponse{Message: message, Status: res.Status})
}

func (h *InterviewHandler) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	msgs, err := h.service.Messages(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, models.MessageListResponse{Messages: msgs})
}

func (h *InterviewHandler) AppendMessageHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.AppendMessageRequest](r)

	msg, err := h.service.AppendMessage(r.Context(), c, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusCreated, msg)
}

// stream writes chunks as they arrive. Once the first byte is out the status is
// fixed, so a later failure can only end the body early.
func (h *InterviewHandler) stream(w http.ResponseWriter, chunks iter.Seq2[string, error], fields ...zap.Field) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	flusher, _ := w.(http.Flusher)

	wrote := false
	for chunk, err := range chunks {
		if err != nil {
			h.logger.Warn("Stream ended with error", append(fields, zap.Error(err))...)
			if !wrote {
				utils.JSON(w, http.StatusBadGateway, models.ErrorResponse{
					Code:      "generation_failed",
					Message:   "The interviewer could not respond, please try again",
					Retriable: true,
				})
			}
			return
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			h.logger.Info("Client went away during stream", append(fields, zap.Error(err))...)
			return
		}
		wrote = true
		if flusher != nil {
			flusher.Flush()
		}
	}
}
