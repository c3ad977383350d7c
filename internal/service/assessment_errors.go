package service

import "errors"

// ErrInvalidRequest indicates missing or malformed input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrJudgeFailed indicates the scoring model call failed or returned unusable output.
var ErrJudgeFailed = errors.New("evaluation failed")

// ErrPersistence indicates the submission document could not be read or written.
var ErrPersistence = errors.New("failed to persist submission")

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrAttemptNotFound indicates the referenced attempt does not exist.
var ErrAttemptNotFound = errors.New("attempt not found")

// ErrAssignmentNotFound indicates the assignment cannot be located.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrMaxAttemptsReached indicates the question has no attempts left.
var ErrMaxAttemptsReached = errors.New("maximum attempts reached")

// ErrAssignmentMismatch indicates a submission was used with another assignment.
var ErrAssignmentMismatch = errors.New("submission does not belong to assignment")

// ErrContentLocked indicates the question is not yet unlocked for the respondent.
var ErrContentLocked = errors.New("content locked")

// ErrForbidden indicates the caller may not perform the action.
var ErrForbidden = errors.New("forbidden")
