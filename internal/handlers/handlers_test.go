package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/dispatch/dispatchtest"
	"github.com/songer666/jobs-ai/internal/interview"
	"github.com/songer666/jobs-ai/internal/llm"
	"github.com/songer666/jobs-ai/internal/llm/llmtest"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/prompts"
	"github.com/songer666/jobs-ai/internal/quota"
	"github.com/songer666/jobs-ai/internal/repositories"
	"github.com/songer666/jobs-ai/internal/testhelpers"
	"github.com/songer666/jobs-ai/internal/timer"
)

var candidate = models.Caller{ID: "u1", Name: "Ann", Role: "user"}

type fixture struct {
	svc        *interview.Service
	interviews *repositories.InterviewRepository
	dispatcher *dispatchtest.Recorder
	model      *llmtest.Fake
	job        *models.JobInfo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	_, store := testhelpers.SetupTestRedis(t)

	f := &fixture{
		interviews: &repositories.InterviewRepository{DB: db},
		dispatcher: &dispatchtest.Recorder{},
		model:      &llmtest.Fake{Name: "gemini", Chunks: []string{"Why ", "Go?"}},
		job:        &models.JobInfo{Name: "be", Title: "Backend Engineer", Description: "apis", ExperienceLevel: "mid", IsPublic: true},
	}
	jobs := &repositories.JobInfoRepository{DB: db}
	require.NoError(t, jobs.Create(context.Background(), f.job))

	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)

	f.svc = interview.NewService(interview.Deps{
		Interviews:  f.interviews,
		Transcripts: &repositories.MessageRepository{DB: db},
		Jobs:        jobs,
		Quota:       quota.NewCounter(store, config.QuotaConfig{InterviewsPerDay: 3, QuestionsPerDay: 20, Location: time.UTC}),
		Timer:       timer.New(store, time.Hour),
		Dispatcher:  f.dispatcher,
		Providers:   llm.NewSet(f.model),
		Prompts:     pm,
	}, config.InterviewConfig{MaxDuration: time.Hour, MaxQuestions: 5, EvaluationRetries: 3}, zap.NewNop())
	return f
}

func (f *fixture) createInterview(t *testing.T) *models.Interview {
	t.Helper()
	iv, err := f.svc.Create(context.Background(), candidate, &models.CreateInterviewRequest{JobInfoID: f.job.ID, Language: "en", Model: "gemini"})
	require.NoError(t, err)
	return iv
}

// serve runs handler behind body validation with the caller and id route param set.
func serve[T middleware.Validator](handler http.HandlerFunc, id string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithCaller(ctx, candidate)

	rec := httptest.NewRecorder()
	middleware.ValidateRequest[T]()(handler).ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{interview.ErrNotOwner, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("wrapped: %w", interview.ErrNotFound), http.StatusNotFound, "not_found"},
		{interview.ErrJobNotFound, http.StatusNotFound, "job_not_found"},
		{&interview.QuotaExceededError{Kind: quota.KindQuestion, Limit: 20, Message: "come back tomorrow"}, http.StatusTooManyRequests, "quota_exceeded"},
		{&interview.QuestionCapError{Limit: 10, Asked: 10}, http.StatusTooManyRequests, "question_limit_reached"},
		{fmt.Errorf("%w: deepseek", interview.ErrModelUnavailable), http.StatusBadRequest, "model_unavailable"},
		{interview.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{&interview.SchedulingError{Target: "auto-end-interview", Err: errors.New("down")}, http.StatusServiceUnavailable, "scheduling_failed"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, zap.NewNop(), tc.err)
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestQuotaErrorBodyCarriesRemaining(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), &interview.QuotaExceededError{Kind: quota.KindInterview, Limit: 3, Message: "limit used up"})

	var body models.QuotaErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "interview", body.Kind)
	assert.Equal(t, 3, body.Limit)
	assert.Zero(t, body.Remaining)
	assert.Equal(t, "limit used up", body.Message)
}

func TestQuestionHandlerStreamsAndCounts(t *testing.T) {
	f := newFixture(t)
	h := NewInterviewHandler(f.svc, zap.NewNop())
	iv := f.createInterview(t)

	rec := serve[*models.GenerateQuestionRequest](h.QuestionHandler, iv.ID, map[string]string{"difficulty": "hard"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Why Go?", rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Question-Number"))
	assert.Equal(t, prompts.StageOpening, rec.Header().Get("X-Question-Stage"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	got, err := f.interviews.GetByID(context.Background(), iv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuestionCount)
}

func TestQuestionHandlerFailureBeforeFirstChunk(t *testing.T) {
	f := newFixture(t)
	h := NewInterviewHandler(f.svc, zap.NewNop())
	iv := f.createInterview(t)
	f.model.Chunks = nil
	f.model.Err = &llm.ProviderError{Provider: "gemini", Code: llm.ErrCodeRateLimit, Message: "slow down"}

	rec := serve[*models.GenerateQuestionRequest](h.QuestionHandler, iv.ID, map[string]string{})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	got, err := f.interviews.GetByID(context.Background(), iv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.QuestionCount)
}

func TestQuestionHandlerRejectsBadDifficulty(t *testing.T) {
	f := newFixture(t)
	h := NewInterviewHandler(f.svc, zap.NewNop())
	iv := f.createInterview(t)

	rec := serve[*models.GenerateQuestionRequest](h.QuestionHandler, iv.ID, map[string]string{"difficulty": "impossible"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.model.Requests())
}

func TestCompleteHandlerRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	h := NewInterviewHandler(f.svc, zap.NewNop())
	iv := f.createInterview(t)

	rec := serve[*models.CompleteInterviewRequest](h.CompleteHandler, iv.ID, map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	serve[*models.GenerateQuestionRequest](h.QuestionHandler, iv.ID, map[string]string{})
	rec = serve[*models.CompleteInterviewRequest](h.CompleteHandler, iv.ID, map[string]any{"duration": 300})
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.CompleteInterviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.StatusEvaluating, body.Status)
	assert.Len(t, f.dispatcher.Calls("publish"), 1)
}

func TestWebhookEvaluate(t *testing.T) {
	f := newFixture(t)
	h := NewWebhookHandler(f.svc, zap.NewNop())
	ih := NewInterviewHandler(f.svc, zap.NewNop())
	iv := f.createInterview(t)
	serve[*models.GenerateQuestionRequest](ih.QuestionHandler, iv.ID, map[string]string{})
	_, err := f.svc.AutoEnd(context.Background(), iv.ID)
	require.NoError(t, err)

	payload := map[string]any{"interviewId": iv.ID, "language": "en", "conversationHistory": []map[string]string{{"role": "assistant", "content": "Why Go?"}}}

	f.model.Chunks = []string{"Overall score: 72/100"}
	rec := serve[*models.EvaluateInterviewPayload](h.EvaluateHandler, "", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.Score)
	assert.Equal(t, 72, *body.Score)

	// redelivery is acknowledged without another model call
	calls := len(f.model.Requests())
	rec = serve[*models.EvaluateInterviewPayload](h.EvaluateHandler, "", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.model.Requests(), calls)
}

func TestWebhookEvaluateModelFailure(t *testing.T) {
	f := newFixture(t)
	h := NewWebhookHandler(f.svc, zap.NewNop())
	ih := NewInterviewHandler(f.svc, zap.NewNop())
	iv := f.createInterview(t)
	serve[*models.GenerateQuestionRequest](ih.QuestionHandler, iv.ID, map[string]string{})
	_, err := f.svc.AutoEnd(context.Background(), iv.ID)
	require.NoError(t, err)

	f.model.Err = errors.New("gemini unavailable")
	rec := serve[*models.EvaluateInterviewPayload](h.EvaluateHandler, "", map[string]string{"interviewId": iv.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)

	got, err := f.interviews.GetByID(context.Background(), iv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Nil(t, got.Score)
	assert.NotNil(t, got.Feedback)
}

func TestWebhookAutoEnd(t *testing.T) {
	f := newFixture(t)
	h := NewWebhookHandler(f.svc, zap.NewNop())

	rec := serve[*models.AutoEndInterviewPayload](h.AutoEndHandler, "", map[string]string{"interviewId": "unknown"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve[*models.AutoEndInterviewPayload](h.AutoEndHandler, "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.dispatcher.Calls("publish"))
}

func TestReadyzHandler(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	NewHealthHandler(ok, ok, &llmtest.Fake{}).ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(ok, down, &llmtest.Fake{}).ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "failed", body.Checks["redis"].Status)
	assert.Equal(t, "ok", body.Checks["database"].Status)

	rec = httptest.NewRecorder()
	NewHealthHandler(ok, ok, nil).ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthzHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, nil, nil).HealthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
