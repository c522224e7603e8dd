package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/dispatch/dispatchtest"
	"github.com/songer666/jobs-ai/internal/handlers"
	"github.com/songer666/jobs-ai/internal/interview"
	"github.com/songer666/jobs-ai/internal/llm"
	"github.com/songer666/jobs-ai/internal/llm/llmtest"
	"github.com/songer666/jobs-ai/internal/metrics"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/prompts"
	"github.com/songer666/jobs-ai/internal/quota"
	"github.com/songer666/jobs-ai/internal/repositories"
	"github.com/songer666/jobs-ai/internal/testhelpers"
	"github.com/songer666/jobs-ai/internal/timer"
)

const (
	jwtSecret  = "routes-test-secret"
	signingKey = "sig_current"
)

type app struct {
	router     *chi.Mux
	dispatcher *dispatchtest.Recorder
	model      *llmtest.Fake
	job        *models.JobInfo
}

func newApp(t *testing.T) *app {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	_, store := testhelpers.SetupTestRedis(t)
	logger := zap.NewNop()

	a := &app{
		dispatcher: &dispatchtest.Recorder{},
		model:      &llmtest.Fake{Name: "gemini", Chunks: []string{"Introduce ", "yourself."}},
		job:        &models.JobInfo{Name: "fe", Title: "Frontend Engineer", Description: "react", ExperienceLevel: "junior", IsPublic: true},
	}
	jobs := &repositories.JobInfoRepository{DB: db}
	require.NoError(t, jobs.Create(context.Background(), a.job))
	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)
	m := metrics.New("jobs-ai-test")

	svc := interview.NewService(interview.Deps{
		Interviews:  &repositories.InterviewRepository{DB: db},
		Transcripts: &repositories.MessageRepository{DB: db},
		Jobs:        jobs,
		Quota:       quota.NewCounter(store, config.QuotaConfig{InterviewsPerDay: 2, QuestionsPerDay: 20, Location: time.UTC}),
		Timer:       timer.New(store, time.Hour),
		Dispatcher:  a.dispatcher,
		Providers:   llm.NewSet(a.model),
		Prompts:     pm,
		Observer:    m,
	}, config.InterviewConfig{MaxDuration: time.Hour, MaxQuestions: 4, EvaluationRetries: 3}, logger)

	a.router = chi.NewRouter()
	a.router.Use(m.Middleware)
	HealthRoutes(a.router, handlers.NewHealthHandler(nil, nil, a.model), m.Handler())
	InterviewRoutes(a.router, handlers.NewInterviewHandler(svc, logger), middleware.Authenticate(jwtSecret, logger), 5*time.Second)
	WebhookRoutes(a.router, handlers.NewWebhookHandler(svc, logger),
		middleware.VerifyWebhookSignature(dispatch.NewVerifier(signingKey, ""), "http://localhost", logger))
	return a
}

func (a *app) call(t *testing.T, method, path string, caller *models.Caller, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if caller != nil {
		token, err := middleware.IssueCallerToken(jwtSecret, *caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// deliver replays a recorded dispatcher call against the webhook routes, signed
// the way the dispatcher signs it.
func (a *app) deliver(t *testing.T, call dispatchtest.Call) *httptest.ResponseRecorder {
	t.Helper()
	path := WebhookPrefix + "/" + call.Target
	token, err := dispatch.Sign(signingKey, "http://localhost"+path, call.Payload, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(call.Payload))
	req.Header.Set(dispatch.SignatureHeader, token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestRoutesRegistered(t *testing.T) {
	a := newApp(t)

	paths := map[string]bool{}
	require.NoError(t, chi.Walk(a.router, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		paths[method+" "+route] = true
		return nil
	}))

	expected := []string{
		"GET /healthz",
		"GET /readyz",
		"GET /api/v1/usage",
		"GET /api/v1/interviews",
		"POST /api/v1/interviews",
		"GET /api/v1/interviews/{id}",
		"DELETE /api/v1/interviews/{id}",
		"POST /api/v1/interviews/{id}/timer/start",
		"GET /api/v1/interviews/{id}/timer",
		"POST /api/v1/interviews/{id}/questions",
		"POST /api/v1/interviews/{id}/answers",
		"POST /api/v1/interviews/{id}/complete",
		"GET /api/v1/interviews/{id}/messages",
		"POST /api/v1/interviews/{id}/messages",
		"POST /api/webhook/qstash/evaluate-interview",
		"POST /api/webhook/qstash/auto-end-interview",
	}
	for _, route := range expected {
		assert.True(t, paths[route], "expected route %s to be registered", route)
	}
}

func TestUnauthenticatedAndUnsigned(t *testing.T) {
	a := newApp(t)

	rec := a.call(t, http.MethodGet, "/api/v1/interviews", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, WebhookPrefix+"/auto-end-interview", bytes.NewBufferString(`{"interviewId":"x"}`))
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInterviewLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	ann := &models.Caller{ID: "ann", Name: "Ann", Role: "user"}
	eve := &models.Caller{ID: "eve", Role: "user"}

	rec := a.call(t, http.MethodPost, "/api/v1/interviews", ann, map[string]string{"jobInfoId": a.job.ID, "language": "en"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var iv models.Interview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iv))
	base := "/api/v1/interviews/" + iv.ID

	assert.Equal(t, http.StatusForbidden, a.call(t, http.MethodGet, base, eve, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.call(t, http.MethodGet, "/api/v1/interviews/missing", ann, nil).Code)

	// timer start is idempotent
	rec = a.call(t, http.MethodPost, base+"/timer/start", ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first models.TimerStartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.AlreadyStarted)

	rec = a.call(t, http.MethodPost, base+"/timer/start", ann, nil)
	var second models.TimerStartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.AlreadyStarted)
	assert.Equal(t, first.StartTime, second.StartTime)
	require.Len(t, a.dispatcher.Calls("schedule"), 1)

	rec = a.call(t, http.MethodGet, base+"/timer", ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var elapsed models.ElapsedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &elapsed))
	assert.Equal(t, int64(3600), elapsed.MaxDuration)
	assert.False(t, elapsed.Exceeded)

	rec = a.call(t, http.MethodPost, base+"/questions", ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Introduce yourself.", rec.Body.String())

	rec = a.call(t, http.MethodPost, base+"/messages", ann, map[string]string{"role": "assistant", "content": "Introduce yourself."})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.call(t, http.MethodPost, base+"/messages", ann, map[string]string{"role": "user", "content": "I build UIs."})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.call(t, http.MethodGet, base+"/messages", ann, nil)
	var msgs models.MessageListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Len(t, msgs.Messages, 2)

	a.model.Chunks = []string{"Good answer. ", "Rating: 7/10"}
	rec = a.call(t, http.MethodPost, base+"/answers", ann, map[string]string{"question": "Introduce yourself.", "answer": "I build UIs."})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rating: 7/10")

	rec = a.call(t, http.MethodPost, base+"/complete", ann, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	publishes := a.dispatcher.Calls("publish")
	require.Len(t, publishes, 1)

	// the deadline arrives after the manual end
	rec = a.deliver(t, a.dispatcher.Calls("schedule")[0])
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, a.dispatcher.Calls("publish"), 1)

	a.model.Chunks = []string{"Solid fundamentals. Overall score: 8/10"}
	rec = a.deliver(t, publishes[0])
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.call(t, http.MethodGet, base, ann, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iv))
	assert.Equal(t, models.StatusCompleted, iv.Status)
	require.NotNil(t, iv.Score)
	assert.Equal(t, 80, *iv.Score)

	assert.Equal(t, http.StatusConflict, a.call(t, http.MethodPost, base+"/complete", ann, map[string]any{}).Code)

	rec = a.call(t, http.MethodGet, "/api/v1/usage", ann, nil)
	var usage models.UsageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, 1, usage.Usage["interview"].Used)
	assert.Equal(t, 1, usage.Usage["question"].Used)

	rec = a.call(t, http.MethodGet, "/metrics", nil, nil)
	assert.Contains(t, rec.Body.String(), "jobs_ai_evaluations_dispatched_total")

	assert.Equal(t, http.StatusNoContent, a.call(t, http.MethodDelete, base, ann, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.call(t, http.MethodGet, base, ann, nil).Code)
}

func TestCreateBeyondQuota(t *testing.T) {
	a := newApp(t)
	ann := &models.Caller{ID: "ann", Role: "user"}

	for i := 0; i < 2; i++ {
		rec := a.call(t, http.MethodPost, "/api/v1/interviews", ann, map[string]string{"jobInfoId": a.job.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
		var iv models.Interview
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iv))
		require.Equal(t, http.StatusOK, a.call(t, http.MethodPost, "/api/v1/interviews/"+iv.ID+"/timer/start", ann, nil).Code)
	}

	rec := a.call(t, http.MethodPost, "/api/v1/interviews", ann, map[string]string{"jobInfoId": a.job.ID})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body models.QuotaErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "quota_exceeded", body.Code)
	assert.Equal(t, "interview", body.Kind)
	assert.Zero(t, body.Remaining)

	rec = a.call(t, http.MethodPost, "/api/v1/interviews", ann, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
