package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/songer666/jobs-ai/internal/models"
)

type JobInfoRepository struct {
	DB *gorm.DB
}

func (r *JobInfoRepository) Create(ctx context.Context, job *models.JobInfo) error {
	return r.DB.WithContext(ctx).Create(job).Error
}

func (r *JobInfoRepository) GetByID(ctx context.Context, id string) (*models.JobInfo, error) {
	var job models.JobInfo
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}
