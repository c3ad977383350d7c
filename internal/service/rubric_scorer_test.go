package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/pkg/ai"
)

func TestRubricScorerClampsToRubric(t *testing.T) {
	judge := &stubJudge{result: ai.JudgeResult{
		RubricScores: []ai.JudgedItem{
			{Item: "Clarity", PointsEarned: 7, PointsPossible: 7, Feedback: "very clear"},
			{Item: "", PointsEarned: 3, PointsPossible: 9, Feedback: "some depth"},
		},
		OverallFeedback: "  Good answer  ",
	}}
	scorer := NewRubricScorer(judge, zerolog.Nop())

	rubric := []models.RubricItem{{Item: "Clarity", Points: 5}, {Item: "Depth", Points: 5}}
	result, err := scorer.Score(context.Background(), ScoreRequest{
		Prompt:     "Explain recursion",
		Rubric:     rubric,
		AnswerText: "A function that calls itself",
		Language:   "en",
	})
	require.NoError(t, err)

	require.Len(t, result.RubricScores, 2)
	require.Equal(t, 5.0, result.RubricScores[0].PointsEarned)
	require.Equal(t, 5.0, result.RubricScores[0].PointsPossible)
	require.Equal(t, 3.0, result.RubricScores[1].PointsEarned)
	require.Equal(t, 5.0, result.RubricScores[1].PointsPossible)
	require.Equal(t, "Depth", result.RubricScores[1].Item)
	require.Equal(t, "Good answer", result.OverallFeedback)
	require.Equal(t, 8.0, models.SumEarned(result.RubricScores))
	require.Equal(t, 10.0, models.SumPoints(rubric))

	require.Len(t, judge.inputs, 1)
	require.Equal(t, []ai.Criterion{{Item: "Clarity", Points: 5}, {Item: "Depth", Points: 5}}, judge.inputs[0].Rubric)
}

func TestRubricScorerFillsMissingItems(t *testing.T) {
	judge := &stubJudge{result: ai.JudgeResult{
		RubricScores: []ai.JudgedItem{{Item: "Clarity", PointsEarned: 2, Feedback: "ok"}},
	}}
	scorer := NewRubricScorer(judge, zerolog.Nop())

	result, err := scorer.Score(context.Background(), ScoreRequest{
		Rubric:     []models.RubricItem{{Item: "Clarity", Points: 5}, {Item: "Depth", Points: 3}},
		AnswerText: "answer",
	})
	require.NoError(t, err)
	require.Len(t, result.RubricScores, 2)
	require.Equal(t, models.RubricScore{Item: "Depth", PointsEarned: 0, PointsPossible: 3, Feedback: ""}, result.RubricScores[1])
}

func TestRubricScorerDropsExtraItems(t *testing.T) {
	judge := &stubJudge{result: ai.JudgeResult{
		RubricScores: []ai.JudgedItem{{PointsEarned: 1}, {PointsEarned: 1}, {PointsEarned: 1}},
	}}
	scorer := NewRubricScorer(judge, zerolog.Nop())

	result, err := scorer.Score(context.Background(), ScoreRequest{
		Rubric:     []models.RubricItem{{Item: "Only", Points: 2}},
		AnswerText: "answer",
	})
	require.NoError(t, err)
	require.Len(t, result.RubricScores, 1)
}

func TestRubricScorerErrors(t *testing.T) {
	scorer := NewRubricScorer(&stubJudge{}, zerolog.Nop())
	_, err := scorer.Score(context.Background(), ScoreRequest{AnswerText: "answer"})
	require.ErrorIs(t, err, ErrInvalidRequest)

	failing := &stubJudge{err: errors.New("upstream timeout")}
	scorer = NewRubricScorer(failing, zerolog.Nop())
	_, err = scorer.Score(context.Background(), ScoreRequest{
		Rubric:     []models.RubricItem{{Item: "Clarity", Points: 5}},
		AnswerText: "answer",
	})
	require.ErrorIs(t, err, ErrJudgeFailed)
	require.Contains(t, err.Error(), "upstream timeout")

	scorer = NewRubricScorer(nil, zerolog.Nop())
	_, err = scorer.Score(context.Background(), ScoreRequest{
		Rubric:     []models.RubricItem{{Item: "Clarity", Points: 5}},
		AnswerText: "answer",
	})
	require.ErrorIs(t, err, ErrJudgeFailed)
}
