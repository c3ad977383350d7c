package dto

import (
	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/service"
)

// RubricItemRequest is one rubric line sent by the client.
type RubricItemRequest struct {
	Item   string  `json:"item" validate:"required"`
	Points float64 `json:"points" validate:"gte=0"`
}

// ChatMessageRequest is one prior conversation turn.
type ChatMessageRequest struct {
	Role    string `json:"role" validate:"required,oneof=student assistant"`
	Content string `json:"content"`
}

// TurnExchangeRequest is the body of a conversational turn.
type TurnExchangeRequest struct {
	AssignmentID   string               `json:"assignmentId" validate:"required"`
	SubmissionID   string               `json:"submissionId"`
	QuestionOrder  *int                 `json:"questionOrder" validate:"required"`
	QuestionPrompt string               `json:"questionPrompt" validate:"required"`
	Rubric         []RubricItemRequest  `json:"rubric" validate:"dive"`
	Language       string               `json:"language"`
	Messages       []ChatMessageRequest `json:"messages" validate:"dive"`
	AttemptNumber  int                  `json:"attemptNumber" validate:"gte=0"`
	SystemPrompt   string               `json:"system_prompt"`
	Greeting       string               `json:"greeting"`
	SharedContext  string               `json:"shared_context"`
	ExpectedAnswer string               `json:"expected_answer"`
}

// ToServiceRequest converts the payload for the assessment facade.
func (r TurnExchangeRequest) ToServiceRequest(userID string) service.TurnRequest {
	messages := make([]service.ConversationMessage, 0, len(r.Messages))
	for _, message := range r.Messages {
		messages = append(messages, service.ConversationMessage{Role: message.Role, Content: message.Content})
	}

	order := 0
	if r.QuestionOrder != nil {
		order = *r.QuestionOrder
	}

	return service.TurnRequest{
		AssignmentID:  r.AssignmentID,
		SubmissionID:  r.SubmissionID,
		QuestionOrder: order,
		AttemptNumber: r.AttemptNumber,
		UserID:        userID,
		Input: service.TurnInput{
			QuestionPrompt: r.QuestionPrompt,
			Rubric:         toRubric(r.Rubric),
			Language:       r.Language,
			Messages:       messages,
			SystemPrompt:   r.SystemPrompt,
			Greeting:       r.Greeting,
			SharedContext:  r.SharedContext,
			ExpectedAnswer: r.ExpectedAnswer,
		},
	}
}

// EvaluateRequest is the body of the evaluate endpoint.
type EvaluateRequest struct {
	AssignmentID   string              `json:"assignmentId"`
	SubmissionID   string              `json:"submissionId" validate:"required"`
	QuestionOrder  *int                `json:"questionOrder" validate:"required"`
	AnswerText     string              `json:"answerText" validate:"required"`
	QuestionPrompt string              `json:"questionPrompt" validate:"required"`
	Rubric         []RubricItemRequest `json:"rubric" validate:"required,min=1,dive"`
	Language       string              `json:"language"`
}

// ToServiceRequest converts the payload for the assessment facade.
func (r EvaluateRequest) ToServiceRequest(userID string) service.EvaluateRequest {
	order := 0
	if r.QuestionOrder != nil {
		order = *r.QuestionOrder
	}
	return service.EvaluateRequest{
		AssignmentID:   r.AssignmentID,
		SubmissionID:   r.SubmissionID,
		QuestionOrder:  order,
		AnswerText:     r.AnswerText,
		QuestionPrompt: r.QuestionPrompt,
		Rubric:         toRubric(r.Rubric),
		Language:       r.Language,
		UserID:         userID,
	}
}

// EvaluateResponse is returned after a successful evaluation.
type EvaluateResponse struct {
	Success    bool              `json:"success"`
	Attempt    models.Attempt    `json:"attempt"`
	Submission models.Submission `json:"submission"`
}

// ResolveSessionRequest carries the identity hints gathered on page load.
type ResolveSessionRequest struct {
	AssignmentID       string                 `json:"assignmentId" validate:"required"`
	SubmissionID       string                 `json:"submissionId"`
	CachedSubmissionID string                 `json:"cachedSubmissionId"`
	PreferredLanguage  string                 `json:"preferredLanguage"`
	ResponderDetails   map[string]interface{} `json:"responderDetails"`
	QuestionOrders     []int                  `json:"questionOrders"`
}

// ToServiceRequest converts the payload for the session service.
func (r ResolveSessionRequest) ToServiceRequest(userID string) service.ResolveRequest {
	return service.ResolveRequest{
		AssignmentID:       r.AssignmentID,
		URLSubmissionID:    r.SubmissionID,
		CachedSubmissionID: r.CachedSubmissionID,
		UserID:             userID,
		PreferredLanguage:  r.PreferredLanguage,
		ResponderDetails:   r.ResponderDetails,
		QuestionOrders:     r.QuestionOrders,
	}
}

// SelectAttemptRequest is the grader's explicit attempt choice.
type SelectAttemptRequest struct {
	AttemptNumber int `json:"attemptNumber" validate:"required,gt=0"`
}

// SaveAssignmentRequest carries the settings a grader may change.
type SaveAssignmentRequest struct {
	Title       string `json:"title" validate:"required"`
	Mode        string `json:"mode" validate:"omitempty,oneof=voice chat static"`
	Language    string `json:"language"`
	MaxAttempts int    `json:"max_attempts" validate:"gte=0"`
	IsPublic    bool   `json:"is_public"`
}

// ToModel converts the payload into assignment settings for id.
func (r SaveAssignmentRequest) ToModel(id string) models.Assignment {
	return models.Assignment{
		ID:          id,
		Title:       r.Title,
		Mode:        r.Mode,
		Language:    r.Language,
		MaxAttempts: r.MaxAttempts,
		IsPublic:    r.IsPublic,
	}
}

func toRubric(items []RubricItemRequest) []models.RubricItem {
	rubric := make([]models.RubricItem, 0, len(items))
	for _, item := range items {
		rubric = append(rubric, models.RubricItem{Item: item.Item, Points: item.Points})
	}
	return rubric
}
