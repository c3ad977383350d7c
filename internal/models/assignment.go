package models

import "time"

// Assessment modes a respondent may answer through.
const (
	AssignmentModeVoice  = "voice"
	AssignmentModeChat   = "chat"
	AssignmentModeStatic = "static"
)

// Assignment holds the settings the assessment flow reads. Questions and
// rubrics are authored elsewhere and arrive with each request.
type Assignment struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Mode        string    `gorm:"size:16;not null;default:chat" json:"mode"`
	Language    string    `gorm:"size:32" json:"language"`
	MaxAttempts int       `gorm:"not null;default:0" json:"max_attempts"`
	IsPublic    bool      `gorm:"not null;default:false" json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidAssignmentMode reports whether mode is one of the supported modes.
func ValidAssignmentMode(mode string) bool {
	switch mode {
	case AssignmentModeVoice, AssignmentModeChat, AssignmentModeStatic:
		return true
	}
	return false
}

// AttemptsExhausted reports whether active attempts reached the configured
// maximum. Zero means unlimited.
func (a Assignment) AttemptsExhausted(active int) bool {
	return a.MaxAttempts > 0 && active >= a.MaxAttempts
}
