package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/handlers"
	"github.com/songer666/jobs-ai/internal/metrics"
	authmw "github.com/songer666/jobs-ai/internal/middleware"
)

func testRouter() http.Handler {
	cfg := &config.Config{CORSOrigins: []string{"http://localhost:5173"}}
	logger := zap.NewNop()
	return newRouter(cfg, routeSet{
		interview: handlers.NewInterviewHandler(nil, logger),
		webhook:   handlers.NewWebhookHandler(nil, logger),
		health:    handlers.NewHealthHandler(nil, nil, nil),
		metrics:   metrics.New("jobs-ai-test"),
		auth:      authmw.Authenticate("secret", logger),
		verify:    authmw.VerifyWebhookSignature(dispatch.NewVerifier("sig_current", ""), "http://localhost:8080", logger),
	})
}

func TestRegisterRoutes(t *testing.T) {
	router := testRouter()

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusServiceUnavailable},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/interviews", http.StatusUnauthorized},
		{http.MethodPost, "/api/webhook/qstash/evaluate-interview", http.StatusUnauthorized},
		{http.MethodPost, "/api/webhook/qstash/auto-end-interview", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rec.Code)
		}
	}
}

func TestCORSExposesQuestionHeaders(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Question-Number") {
		t.Fatalf("expected question headers to be exposed, got %q", got)
	}
}
