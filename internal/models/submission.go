package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one respondent's run through an assignment. The answers
// document is only mutated through the attempt store. At most one
// non-superseded submission exists per assignment and authenticated user;
// public submissions have a NULL user id and are not constrained.
type Submission struct {
	ID                string            `gorm:"primaryKey;size:64" json:"submissionId"`
	AssignmentID      string            `gorm:"size:64;not null;uniqueIndex:idx_active_submission,where:superseded = false" json:"assignmentId"`
	PreferredLanguage string            `gorm:"size:32" json:"preferredLanguage"`
	UserID            *string           `gorm:"size:64;uniqueIndex:idx_active_submission,where:superseded = false" json:"userId,omitempty"`
	ResponderDetails  datatypes.JSONMap `json:"responderDetails,omitempty"`
	Status            string            `gorm:"size:32;not null" json:"status"`
	Answers           AnswerMap         `json:"answers"`
	Superseded        bool              `gorm:"not null;default:false" json:"-"`
	Version           int               `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

const (
	// SubmissionStatusInProgress marks a submission still accepting attempts.
	SubmissionStatusInProgress = "in_progress"
	// SubmissionStatusCompleted marks a submission finalized by the respondent.
	SubmissionStatusCompleted = "completed"
)

// IsPublic reports whether the submission belongs to an anonymous respondent.
func (s Submission) IsPublic() bool {
	return s.UserID == nil || *s.UserID == ""
}

// BelongsTo reports whether the submission was made for the assignment.
func (s Submission) BelongsTo(assignmentID string) bool {
	return s.AssignmentID == assignmentID
}
