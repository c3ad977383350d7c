package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assess-api/internal/models"
)

// ChatLogRepository persists conversational audit rows.
type ChatLogRepository interface {
	Save(ctx context.Context, entry *models.ChatLog) error
	ListForAttempt(ctx context.Context, submissionID string, questionOrder, attemptNumber int) ([]models.ChatLog, error)
}

type chatLogRepository struct {
	db *gorm.DB
}

// NewChatLogRepository constructs a chat log repository backed by GORM.
func NewChatLogRepository(db *gorm.DB) ChatLogRepository {
	return &chatLogRepository{db: db}
}

func (r *chatLogRepository) Save(ctx context.Context, entry *models.ChatLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *chatLogRepository) ListForAttempt(ctx context.Context, submissionID string, questionOrder, attemptNumber int) ([]models.ChatLog, error) {
	var entries []models.ChatLog
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Where("question_order = ?", questionOrder).
		Where("attempt_number = ?", attemptNumber).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
