package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/models"
)

// ErrSubmissionClosed indicates the submission was finalized and accepts no more attempts.
var ErrSubmissionClosed = errors.New("submission already completed")

// UnlockStatus is the opaque result of progressive content gating.
type UnlockStatus struct {
	Unlocked bool
	Reason   string
}

// UnlockGate decides whether a question is available to the respondent.
type UnlockGate interface {
	Check(ctx context.Context, assignmentID string, questionOrder int, submissionID string) UnlockStatus
}

// AllowAllGate unlocks every question.
type AllowAllGate struct{}

// Check implements UnlockGate.
func (AllowAllGate) Check(context.Context, string, int, string) UnlockStatus {
	return UnlockStatus{Unlocked: true}
}

// AssessmentConfig tunes facade behaviour.
type AssessmentConfig struct {
	// DefaultMaxAttempts applies when the assignment is unknown locally. Zero is unlimited.
	DefaultMaxAttempts int
}

// EvaluateRequest is a finished answer to score and record.
type EvaluateRequest struct {
	// AssignmentID is optional; when set the submission must belong to it.
	AssignmentID   string
	SubmissionID   string
	QuestionOrder  int
	AnswerText     string
	QuestionPrompt string
	Rubric         []models.RubricItem
	Language       string
	UserID         string
}

// EvaluateResult is the persisted attempt and the updated document.
type EvaluateResult struct {
	Attempt    models.Attempt
	Submission models.Submission
}

// TurnRequest is one conversational exchange.
type TurnRequest struct {
	AssignmentID  string
	SubmissionID  string
	QuestionOrder int
	AttemptNumber int
	Input         TurnInput
	UserID        string
}

// AssessmentService is the facade the HTTP layer talks to.
type AssessmentService interface {
	Evaluate(ctx context.Context, request EvaluateRequest) (EvaluateResult, error)
	Turn(ctx context.Context, request TurnRequest, sink EventSink) TurnOutcome
	GetSubmission(ctx context.Context, submissionID string) (models.Submission, error)
	ResetAttempts(ctx context.Context, submissionID string) (models.Submission, error)
	SelectAttempt(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error)
	MarkAttemptStale(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error)
	Supersede(ctx context.Context, submissionID string) (models.Submission, error)
	Transcript(ctx context.Context, submissionID string, questionOrder, attemptNumber int) ([]models.ChatLog, error)
}

type assessmentService struct {
	scorer       RubricScorer
	store        AttemptStore
	orchestrator ConversationOrchestrator
	chatLogs     ChatLogService
	assignments  AssignmentService
	gate         UnlockGate
	config       AssessmentConfig
	logger       zerolog.Logger
}

// NewAssessmentService composes the assessment components.
func NewAssessmentService(scorer RubricScorer, store AttemptStore, orchestrator ConversationOrchestrator, chatLogs ChatLogService, assignments AssignmentService, gate UnlockGate, cfg AssessmentConfig, logger zerolog.Logger) AssessmentService {
	if gate == nil {
		gate = AllowAllGate{}
	}
	return &assessmentService{
		scorer:       scorer,
		store:        store,
		orchestrator: orchestrator,
		chatLogs:     chatLogs,
		assignments:  assignments,
		gate:         gate,
		config:       cfg,
		logger:       logger.With().Str("component", "assessment_service").Logger(),
	}
}

func (s *assessmentService) Evaluate(ctx context.Context, request EvaluateRequest) (EvaluateResult, error) {
	if strings.TrimSpace(request.AnswerText) == "" {
		return EvaluateResult{}, fmt.Errorf("%w: answerText is required", ErrInvalidRequest)
	}
	if len(request.Rubric) == 0 {
		return EvaluateResult{}, fmt.Errorf("%w: rubric must contain at least one item", ErrInvalidRequest)
	}

	submission, err := s.store.Get(ctx, request.SubmissionID)
	if err != nil {
		return EvaluateResult{}, err
	}
	if request.AssignmentID != "" && !submission.BelongsTo(request.AssignmentID) {
		return EvaluateResult{}, ErrAssignmentMismatch
	}
	if !submission.IsPublic() && *submission.UserID != request.UserID {
		return EvaluateResult{}, ErrForbidden
	}
	if submission.Status == models.SubmissionStatusCompleted {
		return EvaluateResult{}, ErrSubmissionClosed
	}

	if status := s.gate.Check(ctx, submission.AssignmentID, request.QuestionOrder, submission.ID); !status.Unlocked {
		return EvaluateResult{}, fmt.Errorf("%w: %s", ErrContentLocked, status.Reason)
	}

	maxAttempts := s.maxAttempts(ctx, submission.AssignmentID)
	if maxAttempts > 0 && submission.Answers.Get(request.QuestionOrder).ActiveAttempts() >= maxAttempts {
		return EvaluateResult{}, ErrMaxAttemptsReached
	}

	result, err := s.scorer.Score(ctx, ScoreRequest{
		Prompt:     request.QuestionPrompt,
		Rubric:     request.Rubric,
		AnswerText: request.AnswerText,
		Language:   request.Language,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("submission_id", request.SubmissionID).Int("question_order", request.QuestionOrder).Msg("scoring failed")
		return EvaluateResult{}, err
	}

	attempt, updated, err := s.store.AppendAttempt(ctx, AppendRequest{
		SubmissionID:  request.SubmissionID,
		QuestionOrder: request.QuestionOrder,
		AnswerText:    request.AnswerText,
		Rubric:        request.Rubric,
		Result:        result,
		MaxAttempts:   maxAttempts,
	})
	if err != nil {
		return EvaluateResult{}, err
	}

	return EvaluateResult{Attempt: attempt, Submission: updated}, nil
}

func (s *assessmentService) maxAttempts(ctx context.Context, assignmentID string) int {
	if s.assignments == nil {
		return s.config.DefaultMaxAttempts
	}
	assignment, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		if !errors.Is(err, ErrAssignmentNotFound) {
			s.logger.Warn().Err(err).Str("assignment_id", assignmentID).Msg("failed to load assignment settings")
		}
		return s.config.DefaultMaxAttempts
	}
	return assignment.MaxAttempts
}

func (s *assessmentService) Turn(ctx context.Context, request TurnRequest, sink EventSink) TurnOutcome {
	if status := s.gate.Check(ctx, request.AssignmentID, request.QuestionOrder, request.SubmissionID); !status.Unlocked {
		err := fmt.Errorf("%w: %s", ErrContentLocked, status.Reason)
		_ = sink.Send(StreamError(err.Error()))
		return TurnOutcome{Err: err}
	}

	attemptNumber := request.AttemptNumber
	if request.SubmissionID != "" {
		submission, err := s.turnSubmission(ctx, request)
		if err != nil {
			_ = sink.Send(StreamError(err.Error()))
			return TurnOutcome{Err: err}
		}
		if attemptNumber <= 0 {
			attemptNumber = submission.Answers.Get(request.QuestionOrder).NextAttemptNumber()
		}
	}
	if attemptNumber <= 0 {
		attemptNumber = 1
	}

	entry := ChatLogEntry{
		SubmissionID:  request.SubmissionID,
		AssignmentID:  request.AssignmentID,
		QuestionOrder: request.QuestionOrder,
		AttemptNumber: attemptNumber,
	}

	if latest, ok := latestStudentMessage(request.Input.Messages); ok {
		entry.Role = models.ChatRoleStudent
		entry.Content = latest
		s.chatLogs.Record(ctx, entry)
	}

	outcome := s.orchestrator.Stream(ctx, request.Input, sink)

	if outcome.Text != "" {
		entry.Role = models.ChatRoleAssistant
		entry.Content = outcome.Text
		s.chatLogs.Record(context.WithoutCancel(ctx), entry)
	}
	return outcome
}

// turnSubmission applies the same ownership rules as Evaluate before any
// message of the exchange is recorded against the submission.
func (s *assessmentService) turnSubmission(ctx context.Context, request TurnRequest) (models.Submission, error) {
	submission, err := s.store.Get(ctx, request.SubmissionID)
	if err != nil {
		return models.Submission{}, err
	}
	if !submission.BelongsTo(request.AssignmentID) {
		return models.Submission{}, ErrAssignmentMismatch
	}
	if !submission.IsPublic() && *submission.UserID != request.UserID {
		return models.Submission{}, ErrForbidden
	}
	return submission, nil
}

func latestStudentMessage(messages []ConversationMessage) (string, bool) {
	if len(messages) == 0 {
		return "", false
	}
	last := messages[len(messages)-1]
	if last.Role != models.ChatRoleStudent || strings.TrimSpace(last.Content) == "" {
		return "", false
	}
	return last.Content, true
}

func (s *assessmentService) GetSubmission(ctx context.Context, submissionID string) (models.Submission, error) {
	return s.store.Get(ctx, submissionID)
}

func (s *assessmentService) ResetAttempts(ctx context.Context, submissionID string) (models.Submission, error) {
	return s.store.MarkAttemptsAsStale(ctx, submissionID)
}

func (s *assessmentService) SelectAttempt(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error) {
	return s.store.SelectAttempt(ctx, submissionID, questionOrder, attemptNumber)
}

func (s *assessmentService) MarkAttemptStale(ctx context.Context, submissionID string, questionOrder, attemptNumber int) (models.Submission, error) {
	return s.store.MarkAttemptStale(ctx, submissionID, questionOrder, attemptNumber)
}

func (s *assessmentService) Supersede(ctx context.Context, submissionID string) (models.Submission, error) {
	return s.store.Supersede(ctx, submissionID)
}

func (s *assessmentService) Transcript(ctx context.Context, submissionID string, questionOrder, attemptNumber int) ([]models.ChatLog, error) {
	if _, err := s.store.Get(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.chatLogs.Transcript(ctx, submissionID, questionOrder, attemptNumber)
}
