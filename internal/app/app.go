// Package app wires the service's collaborators from configuration. It is
// shared by the HTTP server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/interview"
	"github.com/songer666/jobs-ai/internal/kv"
	"github.com/songer666/jobs-ai/internal/llm"
	_ "github.com/songer666/jobs-ai/internal/llm/gemini"
	"github.com/songer666/jobs-ai/internal/prompts"
	"github.com/songer666/jobs-ai/internal/quota"
	"github.com/songer666/jobs-ai/internal/repositories"
	"github.com/songer666/jobs-ai/internal/timer"
)

// App holds the long-lived resources of one process.
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Store      *kv.RedisStore
	Interviews *repositories.InterviewRepository
	Quota      *quota.Counter
	Provider   llm.Provider
	Dispatcher dispatch.Dispatcher
	Verifier   *dispatch.Verifier
	Service    *interview.Service

	closers []func()
}

// Options selects optional parts of the wiring.
type Options struct {
	// Observer receives interview events, e.g. Prometheus metrics.
	Observer interview.Observer
	// SkipProvider leaves the language model unset, for CLI tasks that never call it.
	SkipProvider bool
}

// OpenDatabase connects to the configured database and migrates the schema.
func OpenDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repositories.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database ready", zap.String("driver", cfg.Driver))
	return db, nil
}

// OpenRedis connects to redis and checks it answers.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewDispatcher returns the QStash client when a token is configured and the
// in-process dispatcher otherwise.
func NewDispatcher(cfg *config.Config, logger *zap.Logger) dispatch.Dispatcher {
	if cfg.QStash.Enabled() {
		logger.Info("Using QStash dispatcher", zap.String("url", cfg.QStash.URL))
		return dispatch.NewQStashClient(cfg.QStash.URL, cfg.QStash.Token, cfg.WebhookURL, logger)
	}
	logger.Warn("QSTASH_TOKEN not set, delivering webhooks in-process")
	return dispatch.NewLocalDispatcher(cfg.WebhookURL, cfg.QStash.CurrentSigningKey, logger)
}

// New builds every collaborator and the interview service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg}

	db, err := OpenDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb
	a.Store = kv.NewRedisStore(rdb)
	a.closers = append(a.closers, func() { rdb.Close() })

	pm, err := prompts.NewPromptManager()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}

	providers := llm.NewSet(unavailableProvider{})
	if !opts.SkipProvider {
		a.Provider, err = llm.NewProvider(cfg.Provider)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
		}
		providers = llm.NewSet(a.Provider)
		for _, name := range llm.Registered() {
			if name == cfg.Provider {
				continue
			}
			p, err := llm.NewProvider(name)
			if err != nil {
				logger.Info("Provider not configured, interviews cannot select it",
					zap.String("provider", name), zap.Error(err))
				continue
			}
			providers.Add(name, p)
		}
	}

	a.Dispatcher = NewDispatcher(cfg, logger)
	if local, ok := a.Dispatcher.(*dispatch.LocalDispatcher); ok {
		a.closers = append(a.closers, local.Close)
	}
	a.Verifier = dispatch.NewVerifier(cfg.QStash.CurrentSigningKey, cfg.QStash.NextSigningKey)

	a.Interviews = &repositories.InterviewRepository{DB: db}
	a.Quota = quota.NewCounter(a.Store, cfg.Quota)
	a.Service = interview.NewService(interview.Deps{
		Interviews:  a.Interviews,
		Transcripts: &repositories.MessageRepository{DB: db},
		Jobs:        &repositories.JobInfoRepository{DB: db},
		Quota:       a.Quota,
		Timer:       timer.New(a.Store, cfg.Interview.MaxDuration),
		Dispatcher:  a.Dispatcher,
		Providers:   providers,
		Prompts:     pm,
		Observer:    opts.Observer,
	}, cfg.Interview, logger)
	return a, nil
}

// PingDatabase backs the readiness check.
func (a *App) PingDatabase(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// unavailableProvider stands in when the CLI runs without model credentials.
type unavailableProvider struct{}

var errNoProvider = errors.New("no language model configured")

func (unavailableProvider) Generate(context.Context, llm.Request) (string, error) {
	return "", errNoProvider
}

func (unavailableProvider) Stream(context.Context, llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) { yield("", errNoProvider) }
}

func (unavailableProvider) GetProviderName() string { return "none" }
