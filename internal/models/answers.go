package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// AnswerMap stores the per-question attempt history of a submission keyed by
// question order. Older rows persisted the answers as a JSON array; those are
// migrated to the keyed shape on read and never written back as an array.
type AnswerMap map[int]QuestionAnswers

// legacyAnswer accepts both key spellings found in array-shaped rows.
type legacyAnswer struct {
	QuestionOrder        *int      `json:"questionOrder"`
	QuestionOrderSnake   *int      `json:"question_order"`
	Attempts             []Attempt `json:"attempts"`
	SelectedAttempt      *int      `json:"selectedAttempt"`
	SelectedAttemptSnake *int      `json:"selected_attempt"`
}

func (a *legacyAnswer) order() *int {
	if a.QuestionOrder != nil {
		return a.QuestionOrder
	}
	return a.QuestionOrderSnake
}

func (a *legacyAnswer) selected() *int {
	if a.SelectedAttempt != nil {
		return a.SelectedAttempt
	}
	return a.SelectedAttemptSnake
}

// Get returns the history for a question, or an empty history.
func (m AnswerMap) Get(questionOrder int) QuestionAnswers {
	if m == nil {
		return QuestionAnswers{Attempts: []Attempt{}}
	}
	answers, ok := m[questionOrder]
	if !ok {
		return QuestionAnswers{Attempts: []Attempt{}}
	}
	if answers.Attempts == nil {
		answers.Attempts = []Attempt{}
	}
	return answers
}

// UnmarshalJSON accepts both the keyed shape and the legacy array shape.
func (m *AnswerMap) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = AnswerMap{}
		return nil
	}

	if trimmed[0] == '[' {
		migrated, err := migrateLegacyAnswers(trimmed)
		if err != nil {
			return err
		}
		*m = migrated
		return nil
	}

	keyed := map[int]QuestionAnswers{}
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return fmt.Errorf("decode answers: %w", err)
	}
	*m = keyed
	return nil
}

func migrateLegacyAnswers(data []byte) (AnswerMap, error) {
	var legacy []*legacyAnswer
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy answers: %w", err)
	}

	result := AnswerMap{}
	for index, entry := range legacy {
		if entry == nil {
			continue
		}
		order := index
		if explicit := entry.order(); explicit != nil {
			order = *explicit
		}
		attempts := entry.Attempts
		if attempts == nil {
			attempts = []Attempt{}
		}

		// Entries that land on the same order are merged, never replaced.
		existing, ok := result[order]
		if !ok {
			result[order] = QuestionAnswers{Attempts: attempts, SelectedAttempt: entry.selected()}
			continue
		}
		existing.Attempts = append(existing.Attempts, attempts...)
		if existing.SelectedAttempt == nil {
			existing.SelectedAttempt = entry.selected()
		}
		result[order] = existing
	}
	return result, nil
}

// Scan implements sql.Scanner.
func (m *AnswerMap) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = AnswerMap{}
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported answers column type %T", value)
	}
}

// Value implements driver.Valuer. The keyed shape is always written.
func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(map[int]QuestionAnswers(m))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// GormDataType implements schema.GormDataTypeInterface.
func (AnswerMap) GormDataType() string {
	return "json"
}

// GormDBDataType picks the JSON column type per dialect.
func (AnswerMap) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}
