package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/repository"
)

// ChatLogEntry identifies one message to record for audit.
type ChatLogEntry struct {
	SubmissionID  string
	AssignmentID  string
	QuestionOrder int
	Role          string
	AttemptNumber int
	Content       string
}

// ChatLogService records conversation messages. Recording never fails the caller.
type ChatLogService interface {
	Record(ctx context.Context, entry ChatLogEntry)
	Transcript(ctx context.Context, submissionID string, questionOrder, attemptNumber int) ([]models.ChatLog, error)
}

type chatLogService struct {
	repo      repository.ChatLogRepository
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewChatLogService constructs the audit logger. A nil repository disables recording.
func NewChatLogService(repo repository.ChatLogRepository, logger zerolog.Logger) ChatLogService {
	return &chatLogService{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "chat_log_service").Logger(),
		now:       time.Now,
	}
}

func (s *chatLogService) Record(ctx context.Context, entry ChatLogEntry) {
	if s.repo == nil || entry.SubmissionID == "" {
		return
	}

	// Tags are stripped; the escaping bluemonday applies to the remaining text is undone.
	content := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(entry.Content)))
	if content == "" {
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Warn().Interface("panic", recovered).Msg("chat log recording panicked")
		}
	}()

	row := models.ChatLog{
		SubmissionID:  entry.SubmissionID,
		AssignmentID:  entry.AssignmentID,
		QuestionOrder: entry.QuestionOrder,
		Role:          entry.Role,
		AttemptNumber: entry.AttemptNumber,
		Content:       content,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Save(ctx, &row); err != nil {
		s.logger.Warn().Err(err).
			Str("submission_id", entry.SubmissionID).
			Str("role", entry.Role).
			Msg("failed to record chat message")
	}
}

// Transcript returns the recorded messages of one attempt in arrival order.
func (s *chatLogService) Transcript(ctx context.Context, submissionID string, questionOrder, attemptNumber int) ([]models.ChatLog, error) {
	if s.repo == nil {
		return []models.ChatLog{}, nil
	}
	entries, err := s.repo.ListForAttempt(ctx, submissionID, questionOrder, attemptNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if entries == nil {
		entries = []models.ChatLog{}
	}
	return entries, nil
}
