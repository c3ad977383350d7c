package models

import "time"

// Chat roles as sent by clients.
const (
	ChatRoleStudent   = "student"
	ChatRoleAssistant = "assistant"
)

// ChatLog is an audit row for one message of a conversational attempt.
type ChatLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubmissionID  string    `gorm:"size:64;index:idx_chat_log_turn" json:"submission_id"`
	AssignmentID  string    `gorm:"size:64;index" json:"assignment_id"`
	QuestionOrder int       `gorm:"index:idx_chat_log_turn" json:"question_order"`
	Role          string    `gorm:"size:16;not null" json:"role"`
	AttemptNumber int       `gorm:"index:idx_chat_log_turn" json:"attempt_number"`
	Content       string    `gorm:"type:text" json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}
