package models

import (
	"math"
	"time"
)

// RubricItem is one grading criterion. Items are joined to scores by position.
type RubricItem struct {
	Item   string  `json:"item"`
	Points float64 `json:"points"`
}

// RubricScore is the judged result for a single rubric item.
type RubricScore struct {
	Item           string  `json:"item"`
	PointsEarned   float64 `json:"pointsEarned"`
	PointsPossible float64 `json:"pointsPossible"`
	Feedback       string  `json:"feedback"`
}

// Attempt is one finished, scored answer for a question.
type Attempt struct {
	AttemptNumber   int           `json:"attemptNumber"`
	AnswerText      string        `json:"answerText"`
	Score           float64       `json:"score"`
	MaxScore        float64       `json:"maxScore"`
	RubricScores    []RubricScore `json:"rubricScores"`
	OverallFeedback string        `json:"overallFeedback"`
	Timestamp       time.Time     `json:"timestamp"`
	Stale           bool          `json:"stale"`
}

// Percent returns the attempt score as a percentage of its maximum. A zero
// maximum yields zero.
func (a Attempt) Percent() float64 {
	if a.MaxScore <= 0 {
		return 0
	}
	return a.Score / a.MaxScore * 100
}

// QuestionAnswers is the attempt history for one question of a submission.
type QuestionAnswers struct {
	Attempts        []Attempt `json:"attempts"`
	SelectedAttempt *int      `json:"selectedAttempt,omitempty"`
}

// Find returns the attempt with the given number.
func (q QuestionAnswers) Find(attemptNumber int) (Attempt, bool) {
	for _, attempt := range q.Attempts {
		if attempt.AttemptNumber == attemptNumber {
			return attempt, true
		}
	}
	return Attempt{}, false
}

// NextAttemptNumber returns the number the store will assign on the next append.
func (q QuestionAnswers) NextAttemptNumber() int {
	highest := 0
	for _, attempt := range q.Attempts {
		if attempt.AttemptNumber > highest {
			highest = attempt.AttemptNumber
		}
	}
	return highest + 1
}

// ActiveAttempts counts attempts that have not been marked stale.
func (q QuestionAnswers) ActiveAttempts() int {
	count := 0
	for _, attempt := range q.Attempts {
		if !attempt.Stale {
			count++
		}
	}
	return count
}

// BestAttempt returns the highest scoring attempt, earliest on ties.
func (q QuestionAnswers) BestAttempt() (Attempt, bool) {
	var best Attempt
	found := false
	for _, attempt := range q.Attempts {
		if !found || attempt.Score > best.Score ||
			(attempt.Score == best.Score && attempt.AttemptNumber < best.AttemptNumber) {
			best = attempt
			found = true
		}
	}
	return best, found
}

// CurrentAnswer resolves the answer text shown for the question: the selected
// attempt when it is not stale, otherwise the latest non-stale attempt.
func (q QuestionAnswers) CurrentAnswer() (string, bool) {
	if q.SelectedAttempt != nil {
		if attempt, ok := q.Find(*q.SelectedAttempt); ok && !attempt.Stale {
			return attempt.AnswerText, true
		}
	}

	var latest *Attempt
	for i := range q.Attempts {
		attempt := &q.Attempts[i]
		if attempt.Stale {
			continue
		}
		if latest == nil || attempt.AttemptNumber > latest.AttemptNumber {
			latest = attempt
		}
	}
	if latest == nil {
		return "", false
	}
	return latest.AnswerText, true
}

// SumPoints totals the rubric maximum.
func SumPoints(rubric []RubricItem) float64 {
	total := 0.0
	for _, item := range rubric {
		total += item.Points
	}
	return total
}

// SumEarned totals the earned points of a scored rubric.
func SumEarned(scores []RubricScore) float64 {
	total := 0.0
	for _, score := range scores {
		total += score.PointsEarned
	}
	return total
}

// ClampPoints bounds value to [0, max]. NaN and negative infinity become 0.
func ClampPoints(value, max float64) float64 {
	if max < 0 || math.IsNaN(max) {
		max = 0
	}
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > max {
		return max
	}
	return value
}
