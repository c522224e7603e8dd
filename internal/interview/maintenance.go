package interview

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/models"
)

const sweepBatch = 200

// SweepReport summarises one maintenance pass.
type SweepReport struct {
	PendingDeleted    int
	EvaluationsForced int
}

// SweepStalePending deletes pending interviews untouched for longer than ttl. They
// never started a timer, so no quota or scheduled delivery refers to them.
func (s *Service) SweepStalePending(ctx context.Context, ttl time.Duration) (int, error) {
	stale, err := s.interviews.ListStale(ctx, models.StatusPending, s.timer.Now().Add(-ttl), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale pending interviews: %w", err)
	}

	deleted := 0
	for _, iv := range stale {
		ok, err := s.interviews.DeleteIfStatus(ctx, iv.ID, models.StatusPending)
		if err != nil {
			return deleted, fmt.Errorf("delete pending interview %s: %w", iv.ID, err)
		}
		if !ok {
			continue
		}
		deleted++
		if err := s.timer.Clear(ctx, iv.ID); err != nil {
			s.logger.Warn("Failed to clear session timer", zap.String("interview_id", iv.ID), zap.Error(err))
		}
	}
	if deleted > 0 {
		s.logger.Info("Stale pending interviews deleted", zap.Int("count", deleted))
	}
	return deleted, nil
}

// RescueStuckEvaluations completes interviews that have been evaluating for longer
// than after, e.g. when every webhook delivery failed.
func (s *Service) RescueStuckEvaluations(ctx context.Context, after time.Duration) (int, error) {
	stuck, err := s.interviews.ListStale(ctx, models.StatusEvaluating, s.timer.Now().Add(-after), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stuck evaluations: %w", err)
	}

	forced := 0
	for _, iv := range stuck {
		ok, err := s.ForceComplete(ctx, iv.ID, FeedbackEvaluationTimedOut)
		if err != nil {
			return forced, fmt.Errorf("force complete %s: %w", iv.ID, err)
		}
		if ok {
			forced++
			s.observer.EvaluationCompleted(OutcomeTimedOut)
			s.logger.Warn("Evaluation timed out, interview completed without a score",
				zap.String("interview_id", iv.ID),
				zap.String("user_id", iv.UserID),
			)
		}
	}
	return forced, nil
}

// Sweep runs both maintenance passes.
func (s *Service) Sweep(ctx context.Context, pendingTTL, evaluatingAfter time.Duration) (SweepReport, error) {
	var report SweepReport
	var err error
	if report.PendingDeleted, err = s.SweepStalePending(ctx, pendingTTL); err != nil {
		return report, err
	}
	report.EvaluationsForced, err = s.RescueStuckEvaluations(ctx, evaluatingAfter)
	return report, err
}
