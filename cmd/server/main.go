package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/app"
	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/handlers"
	"github.com/songer666/jobs-ai/internal/jobs"
	"github.com/songer666/jobs-ai/internal/metrics"
	authmw "github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/routers"
	"github.com/songer666/jobs-ai/internal/utils"
)

const requestTimeout = 60 * time.Second

type routeSet struct {
	interview *handlers.InterviewHandler
	webhook   *handlers.WebhookHandler
	health    *handlers.HealthHandler
	metrics   *metrics.Metrics
	auth      func(http.Handler) http.Handler
	verify    func(http.Handler) http.Handler
}

func newRouter(cfg *config.Config, routes routeSet) *chi.Mux {
	router := chi.NewRouter()

	// cors middleware
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Question-Number", "X-Question-Stage"},
		AllowCredentials: true,
	}))

	// streaming routes cannot sit behind a global timeout, so it is applied per group
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if routes.metrics != nil {
		router.Use(routes.metrics.Middleware)
	}

	var metricsHandler http.Handler
	if routes.metrics != nil {
		metricsHandler = routes.metrics.Handler()
	}
	routers.HealthRoutes(router, routes.health, metricsHandler)
	routers.InterviewRoutes(router, routes.interview, routes.auth, requestTimeout)
	routers.WebhookRoutes(router, routes.webhook, routes.verify)
	return router
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	utils.InitLogger(cfg.Env, cfg.LogLevel)
	logger := utils.GetLogger()
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("qstash", cfg.QStash.Enabled()))

	m := metrics.New("jobs-ai")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.New(startCtx, cfg, logger, app.Options{Observer: m})
	cancelStart()
	if err != nil {
		logger.Fatal("Failed to initialize service", zap.Error(err))
	}
	defer a.Close()

	if !a.Verifier.Enabled() {
		logger.Warn("QStash signing keys not set, webhook signatures are not verified")
	}

	maintenanceJob := jobs.NewMaintenanceJob(a.Service, cfg.Maintenance, logger)
	if err := maintenanceJob.Start(); err != nil {
		logger.Error("Failed to start maintenance job", zap.Error(err))
	}

	router := newRouter(cfg, routeSet{
		interview: handlers.NewInterviewHandler(a.Service, logger),
		webhook:   handlers.NewWebhookHandler(a.Service, logger),
		health:    handlers.NewHealthHandler(handlers.PingFunc(a.PingDatabase), a.Store, a.Provider),
		metrics:   m,
		auth:      authmw.Authenticate(cfg.JWTSecret, logger),
		verify:    authmw.VerifyWebhookSignature(a.Verifier, cfg.APIBaseURL, logger),
	})

	serverAddr := ":" + cfg.Port

	// WriteTimeout stays unset so question streams are not cut off
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shutdown the server
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")

	maintenanceJob.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("Interview service exited")
}
