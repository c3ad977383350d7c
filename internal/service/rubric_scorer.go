package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/pkg/ai"
)

// ScoreRequest is the input to a single rubric evaluation.
type ScoreRequest struct {
	Prompt     string
	Rubric     []models.RubricItem
	AnswerText string
	Language   string
}

// ScoreResult holds validated per-item scores in rubric order.
type ScoreResult struct {
	RubricScores    []models.RubricScore
	OverallFeedback string
}

// RubricScorer scores an answer against a rubric.
type RubricScorer interface {
	Score(ctx context.Context, request ScoreRequest) (ScoreResult, error)
}

type rubricScorer struct {
	judge  ai.Judge
	logger zerolog.Logger
}

// NewRubricScorer wraps a judge with rubric validation.
func NewRubricScorer(judge ai.Judge, logger zerolog.Logger) RubricScorer {
	return &rubricScorer{
		judge:  judge,
		logger: logger.With().Str("component", "rubric_scorer").Logger(),
	}
}

func (s *rubricScorer) Score(ctx context.Context, request ScoreRequest) (ScoreResult, error) {
	if len(request.Rubric) == 0 {
		return ScoreResult{}, fmt.Errorf("%w: rubric must contain at least one item", ErrInvalidRequest)
	}
	if s.judge == nil {
		return ScoreResult{}, fmt.Errorf("%w: judge not configured", ErrJudgeFailed)
	}

	criteria := make([]ai.Criterion, 0, len(request.Rubric))
	for _, item := range request.Rubric {
		criteria = append(criteria, ai.Criterion{Item: item.Item, Points: item.Points})
	}

	judged, err := s.judge.Judge(ctx, ai.JudgeInput{
		Prompt:     request.Prompt,
		Rubric:     criteria,
		AnswerText: request.AnswerText,
		Language:   request.Language,
	})
	if err != nil {
		return ScoreResult{}, fmt.Errorf("%w: %v", ErrJudgeFailed, err)
	}

	if len(judged.RubricScores) != len(request.Rubric) {
		s.logger.Warn().
			Int("expected", len(request.Rubric)).
			Int("received", len(judged.RubricScores)).
			Msg("judge returned a different number of rubric scores")
	}

	return ScoreResult{
		RubricScores:    clampScores(request.Rubric, judged.RubricScores),
		OverallFeedback: strings.TrimSpace(judged.OverallFeedback),
	}, nil
}

// clampScores aligns judged items to the rubric by position. Earned points
// are bounded by the rubric and possible points always come from the rubric.
func clampScores(rubric []models.RubricItem, judged []ai.JudgedItem) []models.RubricScore {
	scores := make([]models.RubricScore, len(rubric))
	for i, item := range rubric {
		score := models.RubricScore{
			Item:           item.Item,
			PointsPossible: item.Points,
		}
		if i < len(judged) {
			raw := judged[i]
			score.PointsEarned = models.ClampPoints(raw.PointsEarned, item.Points)
			score.Feedback = raw.Feedback
			if label := strings.TrimSpace(raw.Item); label != "" {
				score.Item = raw.Item
			}
		}
		scores[i] = score
	}
	return scores
}
