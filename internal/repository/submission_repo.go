package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assess-api/internal/models"
)

const maxMutateAttempts = 5

// ErrVersionConflict is returned when a concurrent writer changed the
// submission between read and write on every retry.
var ErrVersionConflict = errors.New("submission version conflict")

// SubmissionMutator edits a freshly loaded submission inside a read-modify-write.
type SubmissionMutator func(submission *models.Submission) error

// SubmissionRepository defines data operations for submission documents.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (models.Submission, error)
	FindActiveByUser(ctx context.Context, assignmentID, userID string) (models.Submission, error)
	Mutate(ctx context.Context, id string, mutate SubmissionMutator) (models.Submission, error)
}

type submissionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db, now: time.Now}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.Answers == nil {
		submission.Answers = models.AnswerMap{}
	}
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) FindActiveByUser(ctx context.Context, assignmentID, userID string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("user_id = ?", userID).
		Where("superseded = ?", false).
		Order("created_at DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

// Mutate loads the submission, applies mutate and writes it back guarded by
// the version column. Databases that support row locks also hold one for the
// duration of the transaction.
func (r *submissionRepository) Mutate(ctx context.Context, id string, mutate SubmissionMutator) (models.Submission, error) {
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		updated, err := r.mutateOnce(ctx, id, mutate)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return updated, err
	}
	return models.Submission{}, ErrVersionConflict
}

func (r *submissionRepository) mutateOnce(ctx context.Context, id string, mutate SubmissionMutator) (models.Submission, error) {
	var updated models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current models.Submission
		if err := query.Where("id = ?", id).First(&current).Error; err != nil {
			return err
		}
		if current.Answers == nil {
			current.Answers = models.AnswerMap{}
		}

		expected := current.Version
		if err := mutate(&current); err != nil {
			return err
		}
		current.Version = expected + 1
		current.UpdatedAt = r.now().UTC()

		result := tx.Model(&models.Submission{}).
			Where("id = ? AND version = ?", id, expected).
			Updates(map[string]interface{}{
				"answers":    current.Answers,
				"status":     current.Status,
				"superseded": current.Superseded,
				"version":    current.Version,
				"updated_at": current.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		updated = current
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}
	return updated, nil
}
