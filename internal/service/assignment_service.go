package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/repository"
)

// AssignmentService exposes the assignment settings read by the assessment flow.
type AssignmentService interface {
	Get(ctx context.Context, id string) (models.Assignment, error)
	Save(ctx context.Context, assignment models.Assignment) (models.Assignment, error)
	Invalidate(ctx context.Context, id string)
}

type assignmentService struct {
	repo     repository.AssignmentRepository
	cache    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
	logger   zerolog.Logger
}

// NewAssignmentService builds the settings reader. Redis is optional.
func NewAssignmentService(repo repository.AssignmentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AssignmentService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &assignmentService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "assignment_service").Logger(),
	}
}

func assignmentCacheKey(id string) string {
	return fmt.Sprintf("assessment:assignment:%s", id)
}

func (s *assignmentService) Get(ctx context.Context, id string) (models.Assignment, error) {
	cacheKey := assignmentCacheKey(id)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var assignment models.Assignment
			if unmarshalErr := json.Unmarshal([]byte(cached), &assignment); unmarshalErr == nil {
				s.logger.Debug().Str("assignment_id", id).Msg("assignment cache hit")
				return assignment, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read assignment cache")
		}
	}

	value, err, _ := s.group.Do(id, func() (interface{}, error) {
		assignment, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Assignment{}, ErrAssignmentNotFound
			}
			return models.Assignment{}, err
		}

		if s.cache != nil {
			if payload, err := json.Marshal(assignment); err == nil {
				if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
					s.logger.Warn().Err(err).Msg("failed to store assignment cache")
				}
			}
		}
		return assignment, nil
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return value.(models.Assignment), nil
}

// Save stores assignment settings and drops the cached copy so the next read
// sees them.
func (s *assignmentService) Save(ctx context.Context, assignment models.Assignment) (models.Assignment, error) {
	assignment.ID = strings.TrimSpace(assignment.ID)
	if assignment.ID == "" {
		return models.Assignment{}, fmt.Errorf("%w: assignment id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(assignment.Title) == "" {
		return models.Assignment{}, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if assignment.Mode == "" {
		assignment.Mode = models.AssignmentModeChat
	}
	if !models.ValidAssignmentMode(assignment.Mode) {
		return models.Assignment{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, assignment.Mode)
	}
	if assignment.MaxAttempts < 0 {
		return models.Assignment{}, fmt.Errorf("%w: maxAttempts must not be negative", ErrInvalidRequest)
	}

	if err := s.repo.Upsert(ctx, &assignment); err != nil {
		return models.Assignment{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.Invalidate(ctx, assignment.ID)

	stored, err := s.repo.GetByID(ctx, assignment.ID)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.logger.Info().Str("assignment_id", stored.ID).Str("mode", stored.Mode).Msg("assignment settings saved")
	return stored, nil
}

func (s *assignmentService) Invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, assignmentCacheKey(id)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("assignment_id", id).Msg("failed to invalidate assignment cache")
	}
}
