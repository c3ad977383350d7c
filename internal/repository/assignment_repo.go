package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assess-api/internal/models"
)

// AssignmentRepository reads and stores assignment settings.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id string) (models.Assignment, error)
	Upsert(ctx context.Context, assignment *models.Assignment) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new repository instance.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

// Upsert inserts the assignment or replaces the settings of an existing one.
func (r *assignmentRepository) Upsert(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "mode", "language", "max_attempts", "is_public", "updated_at"}),
	}).Create(assignment).Error
}
