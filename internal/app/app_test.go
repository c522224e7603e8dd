package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/models"
)

func testConfig(t *testing.T, redisAddr string) *config.Config {
	return &config.Config{
		APIBaseURL: "http://localhost:8080",
		Provider:   "gemini",
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "nested", "jobs.db"),
		},
		Redis: config.RedisConfig{Addr: redisAddr},
		QStash: config.QStashConfig{
			URL:               "https://qstash.example.com",
			CurrentSigningKey: "sig_current",
		},
		Interview: config.InterviewConfig{MaxDuration: time.Hour, MaxQuestions: 5, EvaluationRetries: 3},
		Quota:     config.QuotaConfig{InterviewsPerDay: 2, QuestionsPerDay: 10},
	}
}

func TestOpenDatabaseCreatesSQLiteDirectory(t *testing.T) {
	cfg := testConfig(t, "")
	db, err := OpenDatabase(cfg.Database, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	assert.FileExists(t, cfg.Database.SQLitePath)
	assert.True(t, db.Migrator().HasTable(&models.Interview{}))
	assert.True(t, db.Migrator().HasTable(&models.ChatMessage{}))
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = OpenRedis(context.Background(), config.RedisConfig{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestNewDispatcherSelection(t *testing.T) {
	cfg := testConfig(t, "")

	d := NewDispatcher(cfg, zap.NewNop())
	local, ok := d.(*dispatch.LocalDispatcher)
	require.True(t, ok, "expected in-process dispatcher without a token")
	local.Close()

	cfg.QStash.Token = "qstash-token"
	_, ok = NewDispatcher(cfg, zap.NewNop()).(*dispatch.QStashClient)
	assert.True(t, ok, "expected QStash client with a token")
}

func TestNewWiresServiceWithoutProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr())

	a, err := New(context.Background(), cfg, zap.NewNop(), Options{SkipProvider: true})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.PingDatabase(ctx))
	require.NoError(t, a.Store.Ping(ctx))
	assert.Nil(t, a.Provider)
	assert.True(t, a.Verifier.Enabled())

	usage, err := a.Service.Usage(ctx, models.Caller{ID: "u1", Role: "user"})
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Usage["interview"].Remaining)
}
