package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/repository"
)

// Respondent flow phases.
const (
	PhaseCollectingIdentity = "collecting-identity"
	PhaseAnswering          = "answering"
	PhaseCompleted          = "completed"
)

// ResolveRequest carries the identity hints gathered on page load.
type ResolveRequest struct {
	AssignmentID       string
	URLSubmissionID    string
	CachedSubmissionID string
	UserID             string
	PreferredLanguage  string
	ResponderDetails   map[string]interface{}
	QuestionOrders     []int
}

// QuestionState is attempt-derived state for one question, recomputed on
// every resolution.
type QuestionState struct {
	QuestionOrder      int    `json:"questionOrder"`
	Attempts           int    `json:"attempts"`
	ActiveAttempts     int    `json:"activeAttempts"`
	NextAttemptNumber  int    `json:"nextAttemptNumber"`
	SelectedAttempt    *int   `json:"selectedAttempt,omitempty"`
	MaxAttemptsReached bool   `json:"maxAttemptsReached"`
	CurrentAnswer      string `json:"currentAnswer,omitempty"`
	Answered           bool   `json:"answered"`
}

// SessionState is the resolved session returned to the client.
type SessionState struct {
	Phase       string             `json:"phase"`
	Mode        string             `json:"mode"`
	Source      ResolutionSource   `json:"source"`
	Created     bool               `json:"created"`
	MaxAttempts int                `json:"maxAttempts"`
	Submission  *models.Submission `json:"submission,omitempty"`
	Questions   []QuestionState    `json:"questions"`
}

// SessionService resolves which submission a respondent resumes.
type SessionService interface {
	Resolve(ctx context.Context, request ResolveRequest) (SessionState, error)
	Finalize(ctx context.Context, submissionID, userID string) (models.Submission, error)
}

type sessionService struct {
	submissions repository.SubmissionRepository
	assignments AssignmentService
	store       AttemptStore
	logger      zerolog.Logger
	newID       func() string
}

// NewSessionService constructs the session reconciler service.
func NewSessionService(submissions repository.SubmissionRepository, assignments AssignmentService, store AttemptStore, logger zerolog.Logger) SessionService {
	return &sessionService{
		submissions: submissions,
		assignments: assignments,
		store:       store,
		logger:      logger.With().Str("component", "session_service").Logger(),
		newID:       uuid.NewString,
	}
}

func (s *sessionService) Resolve(ctx context.Context, request ResolveRequest) (SessionState, error) {
	if strings.TrimSpace(request.AssignmentID) == "" {
		return SessionState{}, fmt.Errorf("%w: assignmentId is required", ErrInvalidRequest)
	}

	assignment, err := s.assignments.Get(ctx, request.AssignmentID)
	if err != nil {
		return SessionState{}, err
	}
	if request.UserID == "" && !assignment.IsPublic {
		return SessionState{}, ErrForbidden
	}

	sources := ResolutionSources{UserID: request.UserID}
	if request.UserID != "" {
		if sources.Authoritative, err = s.lookup(func() (models.Submission, error) {
			return s.submissions.FindActiveByUser(ctx, request.AssignmentID, request.UserID)
		}); err != nil {
			return SessionState{}, err
		}
	}
	if sources.FromURL, err = s.loadByID(ctx, request.URLSubmissionID); err != nil {
		return SessionState{}, err
	}
	if request.CachedSubmissionID == request.URLSubmissionID {
		sources.FromCache = sources.FromURL
	} else if sources.FromCache, err = s.loadByID(ctx, request.CachedSubmissionID); err != nil {
		return SessionState{}, err
	}

	resolution := Reconcile(request.AssignmentID, sources)
	state := SessionState{Source: resolution.Source, Mode: assignment.Mode, MaxAttempts: assignment.MaxAttempts}

	if resolution.CreateNew() {
		if request.UserID == "" && len(request.ResponderDetails) == 0 {
			state.Phase = PhaseCollectingIdentity
			state.Questions = deriveQuestionStates(nil, assignment, request.QuestionOrders)
			return state, nil
		}

		created, err := s.create(ctx, assignment, request)
		if err != nil {
			return SessionState{}, err
		}
		resolution.Submission = &created
		state.Created = true
	}

	submission := resolution.Submission
	state.Submission = submission
	state.Phase = PhaseAnswering
	if submission.Status == models.SubmissionStatusCompleted {
		state.Phase = PhaseCompleted
	}
	state.Questions = deriveQuestionStates(submission.Answers, assignment, request.QuestionOrders)

	s.logger.Debug().
		Str("assignment_id", request.AssignmentID).
		Str("submission_id", submission.ID).
		Str("source", string(state.Source)).
		Bool("created", state.Created).
		Msg("session resolved")

	return state, nil
}

func (s *sessionService) loadByID(ctx context.Context, id string) (*models.Submission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	return s.lookup(func() (models.Submission, error) {
		return s.submissions.GetByID(ctx, id)
	})
}

func (s *sessionService) lookup(load func() (models.Submission, error)) (*models.Submission, error) {
	submission, err := load()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &submission, nil
}

func (s *sessionService) create(ctx context.Context, assignment models.Assignment, request ResolveRequest) (models.Submission, error) {
	language := strings.TrimSpace(request.PreferredLanguage)
	if language == "" {
		language = assignment.Language
	}

	submission := models.Submission{
		ID:                s.newID(),
		AssignmentID:      assignment.ID,
		PreferredLanguage: language,
		Status:            models.SubmissionStatusInProgress,
		Answers:           models.AnswerMap{},
	}
	if request.UserID != "" {
		userID := request.UserID
		submission.UserID = &userID
	} else {
		submission.ResponderDetails = datatypes.JSONMap(request.ResponderDetails)
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		if request.UserID != "" {
			// A concurrent resolve for the same respondent won the unique index.
			if existing, findErr := s.submissions.FindActiveByUser(ctx, assignment.ID, request.UserID); findErr == nil {
				return existing, nil
			}
		}
		return models.Submission{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID).
		Str("submission_id", submission.ID).
		Bool("public", submission.IsPublic()).
		Msg("submission created")
	return submission, nil
}

func (s *sessionService) Finalize(ctx context.Context, submissionID, userID string) (models.Submission, error) {
	current, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return models.Submission{}, err
	}
	if !current.IsPublic() && *current.UserID != userID {
		return models.Submission{}, ErrForbidden
	}
	if current.Status == models.SubmissionStatusCompleted {
		return current, nil
	}
	return s.store.SetStatus(ctx, submissionID, models.SubmissionStatusCompleted)
}

func deriveQuestionStates(answers models.AnswerMap, assignment models.Assignment, requested []int) []QuestionState {
	orders := make(map[int]struct{}, len(answers)+len(requested))
	for order := range answers {
		orders[order] = struct{}{}
	}
	for _, order := range requested {
		orders[order] = struct{}{}
	}

	sorted := make([]int, 0, len(orders))
	for order := range orders {
		sorted = append(sorted, order)
	}
	sort.Ints(sorted)

	states := make([]QuestionState, 0, len(sorted))
	for _, order := range sorted {
		history := answers.Get(order)
		current, answered := history.CurrentAnswer()
		active := history.ActiveAttempts()
		states = append(states, QuestionState{
			QuestionOrder:      order,
			Attempts:           len(history.Attempts),
			ActiveAttempts:     active,
			NextAttemptNumber:  history.NextAttemptNumber(),
			SelectedAttempt:    history.SelectedAttempt,
			MaxAttemptsReached: assignment.AttemptsExhausted(active),
			CurrentAnswer:      current,
			Answered:           answered,
		})
	}
	return states
}
