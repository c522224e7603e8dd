package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/interview"
)

// Sweeper runs one maintenance pass.
type Sweeper interface {
	Sweep(ctx context.Context, pendingTTL, evaluatingAfter time.Duration) (interview.SweepReport, error)
}

// MaintenanceJob deletes abandoned pending interviews and completes evaluations
// that never came back, on a cron schedule.
type MaintenanceJob struct {
	sweeper Sweeper
	config  config.MaintenanceConfig
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

func NewMaintenanceJob(sweeper Sweeper, cfg config.MaintenanceConfig, logger *zap.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		sweeper: sweeper,
		config:  cfg,
		cron:    cron.New(),
		logger:  logger,
		timeout: 5 * time.Minute,
	}
}

// Start schedules the job. It is a no-op when maintenance is disabled.
func (j *MaintenanceJob) Start() error {
	if !j.config.Enabled {
		j.logger.Info("Maintenance job disabled, skipping scheduler")
		return nil
	}

	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Error("Maintenance run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}

	j.cron.Start()
	j.logger.Info("Maintenance job started", zap.String("schedule", j.config.Schedule))
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (j *MaintenanceJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
		j.logger.Info("Maintenance job stopped")
	}
}

// RunOnce performs a single pass. Overlapping runs are skipped.
func (j *MaintenanceJob) RunOnce(ctx context.Context) (interview.SweepReport, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.Warn("Previous maintenance run still in progress, skipping")
		return interview.SweepReport{}, nil
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	report, err := j.sweeper.Sweep(ctx, j.config.PendingTTL, j.config.EvaluatingAfter)
	if err != nil {
		return report, err
	}
	j.logger.Info("Maintenance run finished",
		zap.Int("pending_deleted", report.PendingDeleted),
		zap.Int("evaluations_forced", report.EvaluationsForced),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}
