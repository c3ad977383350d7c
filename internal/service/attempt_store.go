package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/repository"
)

var attemptsAppended = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "assess",
	Subsystem: "attempts",
	Name:      "appended_total",
	Help:      "Number of scored attempts persisted",
})

// AppendRequest describes a scored answer to record.
type AppendRequest struct {
	SubmissionID  string
	QuestionOrder int
	AnswerText    string
	Rubric        []models.RubricItem
	Result        ScoreResult
	// MaxAttempts rejects the append when the question already has this many
	// non-stale attempts. Zero disables the check.
	MaxAttempts int
}

// AttemptStore owns the answers document of each submission.
type AttemptStore interface {
	Get(ctx context.Context, submissionID string) (models.Submission, error)
	AppendAttempt(ctx context.Context, request AppendRequest) (models.Attempt, models.Submission, error)
	MarkAttemptsAsStale(ctx context.Context, submissionID string) (models.Submission, error)
	MarkAttemptStale(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error)
	SelectAttempt(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error)
	SetStatus(ctx context.Context, submissionID, status string) (models.Submission, error)
	Supersede(ctx context.Context, submissionID string) (models.Submission, error)
}

type attemptStore struct {
	submissions repository.SubmissionRepository
	events      EventPublisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAttemptStore constructs the attempt store.
func NewAttemptStore(submissions repository.SubmissionRepository, events EventPublisher, logger zerolog.Logger) AttemptStore {
	if events == nil {
		events = noopEventPublisher{}
	}
	return &attemptStore{
		submissions: submissions,
		events:      events,
		logger:      logger.With().Str("component", "attempt_store").Logger(),
		now:         time.Now,
	}
}

func (s *attemptStore) Get(ctx context.Context, submissionID string) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return models.Submission{}, s.translate(err)
	}
	if submission.Answers == nil {
		submission.Answers = models.AnswerMap{}
	}
	return submission, nil
}

func (s *attemptStore) AppendAttempt(ctx context.Context, request AppendRequest) (models.Attempt, models.Submission, error) {
	if len(request.Result.RubricScores) != len(request.Rubric) {
		return models.Attempt{}, models.Submission{}, fmt.Errorf("%w: score count does not match rubric", ErrInvalidRequest)
	}

	var created models.Attempt
	updated, err := s.submissions.Mutate(ctx, request.SubmissionID, func(submission *models.Submission) error {
		answers := submission.Answers.Get(request.QuestionOrder)
		if request.MaxAttempts > 0 && answers.ActiveAttempts() >= request.MaxAttempts {
			return ErrMaxAttemptsReached
		}

		created = buildAttempt(answers.NextAttemptNumber(), request, s.now().UTC())
		answers.Attempts = append(answers.Attempts, created)
		if answers.SelectedAttempt == nil {
			if best, ok := answers.BestAttempt(); ok {
				selected := best.AttemptNumber
				answers.SelectedAttempt = &selected
			}
		}

		submission.Answers[request.QuestionOrder] = answers
		return nil
	})
	if err != nil {
		return models.Attempt{}, models.Submission{}, s.translate(err)
	}

	attemptsAppended.Inc()
	s.logger.Info().
		Str("submission_id", request.SubmissionID).
		Int("question_order", request.QuestionOrder).
		Int("attempt_number", created.AttemptNumber).
		Float64("score", created.Score).
		Float64("max_score", created.MaxScore).
		Msg("attempt appended")

	order := request.QuestionOrder
	number := created.AttemptNumber
	score := created.Score
	maxScore := created.MaxScore
	s.events.Publish(ctx, AttemptEvent{
		Type:          AttemptEventCreated,
		SubmissionID:  updated.ID,
		AssignmentID:  updated.AssignmentID,
		QuestionOrder: &order,
		AttemptNumber: &number,
		Score:         &score,
		MaxScore:      &maxScore,
		OccurredAt:    created.Timestamp,
	})

	return created, updated, nil
}

func buildAttempt(number int, request AppendRequest, now time.Time) models.Attempt {
	scores := make([]models.RubricScore, len(request.Result.RubricScores))
	copy(scores, request.Result.RubricScores)

	return models.Attempt{
		AttemptNumber:   number,
		AnswerText:      request.AnswerText,
		Score:           models.SumEarned(scores),
		MaxScore:        models.SumPoints(request.Rubric),
		RubricScores:    scores,
		OverallFeedback: request.Result.OverallFeedback,
		Timestamp:       now,
		Stale:           false,
	}
}

func (s *attemptStore) MarkAttemptsAsStale(ctx context.Context, submissionID string) (models.Submission, error) {
	updated, err := s.submissions.Mutate(ctx, submissionID, func(submission *models.Submission) error {
		for order, answers := range submission.Answers {
			for i := range answers.Attempts {
				answers.Attempts[i].Stale = true
			}
			submission.Answers[order] = answers
		}
		return nil
	})
	if err != nil {
		return models.Submission{}, s.translate(err)
	}

	s.logger.Info().Str("submission_id", submissionID).Msg("attempts marked stale")
	s.events.Publish(ctx, AttemptEvent{
		Type:         AttemptEventReset,
		SubmissionID: updated.ID,
		AssignmentID: updated.AssignmentID,
	})
	return updated, nil
}

func (s *attemptStore) MarkAttemptStale(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error) {
	updated, err := s.submissions.Mutate(ctx, submissionID, func(submission *models.Submission) error {
		answers, ok := submission.Answers[questionOrder]
		if !ok {
			return ErrAttemptNotFound
		}
		for i := range answers.Attempts {
			if answers.Attempts[i].AttemptNumber == attemptNumber {
				answers.Attempts[i].Stale = true
				submission.Answers[questionOrder] = answers
				return nil
			}
		}
		return ErrAttemptNotFound
	})
	if err != nil {
		return models.Submission{}, s.translate(err)
	}

	s.events.Publish(ctx, AttemptEvent{
		Type:          AttemptEventStale,
		SubmissionID:  updated.ID,
		AssignmentID:  updated.AssignmentID,
		QuestionOrder: &questionOrder,
		AttemptNumber: &attemptNumber,
	})
	return updated, nil
}

func (s *attemptStore) SelectAttempt(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error) {
	updated, err := s.submissions.Mutate(ctx, submissionID, func(submission *models.Submission) error {
		answers, ok := submission.Answers[questionOrder]
		if !ok {
			return ErrAttemptNotFound
		}
		if _, found := answers.Find(attemptNumber); !found {
			return ErrAttemptNotFound
		}
		selected := attemptNumber
		answers.SelectedAttempt = &selected
		submission.Answers[questionOrder] = answers
		return nil
	})
	if err != nil {
		return models.Submission{}, s.translate(err)
	}

	s.events.Publish(ctx, AttemptEvent{
		Type:          AttemptEventSelected,
		SubmissionID:  updated.ID,
		AssignmentID:  updated.AssignmentID,
		QuestionOrder: &questionOrder,
		AttemptNumber: &attemptNumber,
	})
	return updated, nil
}

func (s *attemptStore) SetStatus(ctx context.Context, submissionID, status string) (models.Submission, error) {
	updated, err := s.submissions.Mutate(ctx, submissionID, func(submission *models.Submission) error {
		submission.Status = status
		return nil
	})
	if err != nil {
		return models.Submission{}, s.translate(err)
	}
	return updated, nil
}

// Supersede retires a submission so its respondent starts over with a new one
// on the next resolution. The answers stay for grading.
func (s *attemptStore) Supersede(ctx context.Context, submissionID string) (models.Submission, error) {
	changed := false
	updated, err := s.submissions.Mutate(ctx, submissionID, func(submission *models.Submission) error {
		changed = !submission.Superseded
		submission.Superseded = true
		return nil
	})
	if err != nil {
		return models.Submission{}, s.translate(err)
	}

	if changed {
		s.events.Publish(ctx, AttemptEvent{
			Type:         AttemptEventSuperseded,
			SubmissionID: updated.ID,
			AssignmentID: updated.AssignmentID,
		})
	}
	return updated, nil
}

func (s *attemptStore) translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrSubmissionNotFound
	case errors.Is(err, ErrAttemptNotFound), errors.Is(err, ErrMaxAttemptsReached), errors.Is(err, ErrInvalidRequest):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
