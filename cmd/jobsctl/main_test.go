package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/interview"
	"github.com/songer666/jobs-ai/internal/jobs"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/quota"
	"github.com/songer666/jobs-ai/internal/repositories"
	"github.com/songer666/jobs-ai/internal/testhelpers"
)

func captured() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	return cmd, buf
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "jobsctl dev (commit: none)")
}

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"migrate", "sweep", "usage", "stats", "token", "version"} {
		found, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
}

func TestUsageRequiresUser(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"usage"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "user" not set`)
}

func TestRunUsage(t *testing.T) {
	_, store := testhelpers.SetupTestRedis(t)
	counter := quota.NewCounter(store, config.QuotaConfig{
		InterviewsPerDay: 3,
		QuestionsPerDay:  20,
		PrivilegedRoles:  []string{"admin"},
	})
	ctx := context.Background()
	_, err := counter.Increment(ctx, "u1", quota.KindInterview)
	require.NoError(t, err)

	cmd, buf := captured()
	require.NoError(t, runUsage(ctx, cmd, counter, models.Caller{ID: "u1", Role: "user"}))
	out := buf.String()
	assert.Contains(t, out, "Usage for u1 on "+counter.Today())
	assert.Contains(t, out, "1/3 used, 2 remaining")
	assert.Contains(t, out, "0/20 used, 20 remaining")

	cmd, buf = captured()
	require.NoError(t, runUsage(ctx, cmd, counter, models.Caller{ID: "u1", Role: "admin"}))
	assert.Contains(t, buf.String(), "1 used, unlimited")
}

func TestRunStats(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	repo := &repositories.InterviewRepository{DB: db}
	ctx := context.Background()
	job := &models.JobInfo{Name: "backend", Title: "Go Engineer", Description: "build services", ExperienceLevel: "senior"}
	require.NoError(t, (&repositories.JobInfoRepository{DB: db}).Create(ctx, job))
	for _, status := range []models.InterviewStatus{models.StatusPending, models.StatusPending, models.StatusCompleted} {
		require.NoError(t, repo.Create(ctx, &models.Interview{UserID: "u1", JobInfoID: job.ID, Language: "en", Model: "gemini", Status: status}))
	}

	cmd, buf := captured()
	require.NoError(t, runStats(ctx, cmd, repo))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"pending", "2"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"in_progress", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"completed", "1"}, strings.Fields(lines[3]))
}

type fakeSweeper struct {
	pendingTTL, evaluatingAfter time.Duration
}

func (f *fakeSweeper) Sweep(_ context.Context, pendingTTL, evaluatingAfter time.Duration) (interview.SweepReport, error) {
	f.pendingTTL, f.evaluatingAfter = pendingTTL, evaluatingAfter
	return interview.SweepReport{PendingDeleted: 2, EvaluationsForced: 1}, nil
}

func TestRunSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	job := jobs.NewMaintenanceJob(sweeper, config.MaintenanceConfig{
		PendingTTL:      time.Hour,
		EvaluatingAfter: 30 * time.Minute,
	}, zap.NewNop())

	cmd, buf := captured()
	require.NoError(t, runSweep(context.Background(), cmd, job))
	assert.Contains(t, buf.String(), "Deleted 2 stale pending interviews")
	assert.Contains(t, buf.String(), "Completed 1 stuck evaluations")
	assert.Equal(t, time.Hour, sweeper.pendingTTL)
	assert.Equal(t, 30*time.Minute, sweeper.evaluatingAfter)
}

func TestRunToken(t *testing.T) {
	cmd, buf := captured()
	caller := models.Caller{ID: "u1", Name: "Ada", Role: "admin"}
	require.NoError(t, runToken(cmd, "secret", caller, time.Hour))

	token := strings.TrimSpace(buf.String())
	got, err := middleware.VerifyCaller("Bearer "+token, "secret")
	require.NoError(t, err)
	assert.Equal(t, caller, got)
}
