package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/songer666/jobs-ai/internal/models"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// StatusUpdate carries the optional columns written together with a status change.
type StatusUpdate struct {
	Duration *int
	Feedback *string
	Score    *int
	// ClearScore writes NULL into score even when Score is nil.
	ClearScore bool
}

type InterviewRepository struct {
	DB *gorm.DB
}

func (r *InterviewRepository) Create(ctx context.Context, interview *models.Interview) error {
	return r.DB.WithContext(ctx).Create(interview).Error
}

// GetByID loads an interview together with its job posting.
func (r *InterviewRepository) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	err := r.DB.WithContext(ctx).Preload("JobInfo").Where("id = ?", id).First(&interview).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &interview, nil
}

// ListByUser returns the user's interviews, newest first.
func (r *InterviewRepository) ListByUser(ctx context.Context, userID string) ([]models.Interview, error) {
	interviews := []models.Interview{}
	err := r.DB.WithContext(ctx).
		Preload("JobInfo").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&interviews).Error
	return interviews, err
}

// TransitionStatus moves the interview to `to` only if its current status is one of
// `from`. It reports whether this call performed the transition; a false result with
// a nil error means another writer got there first or the row is gone.
func (r *InterviewRepository) TransitionStatus(ctx context.Context, id string, from []models.InterviewStatus, to models.InterviewStatus, upd StatusUpdate) (bool, error) {
	values := map[string]any{"status": to}
	if upd.Duration != nil {
		values["duration"] = *upd.Duration
	}
	if upd.Feedback != nil {
		values["feedback"] = *upd.Feedback
	}
	if upd.Score != nil {
		values["score"] = *upd.Score
	} else if upd.ClearScore {
		values["score"] = gorm.Expr("NULL")
	}

	res := r.DB.WithContext(ctx).
		Model(&models.Interview{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementQuestionCount bumps question_count by one while it is below limit and the
// interview is still in progress.
func (r *InterviewRepository) IncrementQuestionCount(ctx context.Context, id string, limit int) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Interview{}).
		Where("id = ? AND status = ? AND question_count < ?", id, models.StatusInProgress, limit).
		UpdateColumns(map[string]any{
			"question_count": gorm.Expr("question_count + 1"),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes the interview and its transcript in one transaction.
func (r *InterviewRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("interview_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Interview{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteIfStatus removes the interview and its transcript only while it is still in
// status. It reports whether a row was removed.
func (r *InterviewRepository) DeleteIfStatus(ctx context.Context, id string, status models.InterviewStatus) (bool, error) {
	deleted := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, status).Delete(&models.Interview{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("interview_id = ?", id).Delete(&models.ChatMessage{}).Error
	})
	return deleted, err
}

// ListStale returns interviews in status whose last update is older than before.
func (r *InterviewRepository) ListStale(ctx context.Context, status models.InterviewStatus, before time.Time, limit int) ([]models.Interview, error) {
	interviews := []models.Interview{}
	q := r.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&interviews).Error
	return interviews, err
}

// CountByStatus backs the `jobsctl stats` command.
func (r *InterviewRepository) CountByStatus(ctx context.Context) (map[models.InterviewStatus]int64, error) {
	type row struct {
		Status models.InterviewStatus
		Count  int64
	}
	var rows []row
	err := r.DB.WithContext(ctx).
		Model(&models.Interview{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.InterviewStatus]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Count
	}
	return out, nil
}
