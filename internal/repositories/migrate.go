package repositories

import (
	"gorm.io/gorm"

	"github.com/songer666/jobs-ai/internal/models"
)

// AutoMigrate creates or updates the tables owned by this service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.JobInfo{}, &models.Interview{}, &models.ChatMessage{})
}
