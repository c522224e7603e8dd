package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/songer666/jobs-ai/internal/models"
)

// MessageRepository is the transcript log of an interview.
type MessageRepository struct {
	DB *gorm.DB
}

func (r *MessageRepository) Append(ctx context.Context, msg *models.ChatMessage) error {
	return r.DB.WithContext(ctx).Create(msg).Error
}

// ListByInterview returns the transcript in creation order.
func (r *MessageRepository) ListByInterview(ctx context.Context, interviewID string) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	err := r.DB.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}
