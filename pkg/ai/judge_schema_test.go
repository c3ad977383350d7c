package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJudgeResponseStrictJSON(t *testing.T) {
	result, err := ParseJudgeResponse(`{
		"rubric_scores": [
			{"item": "Clarity", "points_earned": 4, "points_possible": 5, "feedback": "Clear"},
			{"item": "Depth", "points_earned": 2.5, "points_possible": 5, "feedback": "Thin"}
		],
		"overall_feedback": "Solid start"
	}`)
	require.NoError(t, err)
	require.Len(t, result.RubricScores, 2)
	require.Equal(t, "Clarity", result.RubricScores[0].Item)
	require.Equal(t, 2.5, result.RubricScores[1].PointsEarned)
	require.Equal(t, "Solid start", result.OverallFeedback)
}

func TestParseJudgeResponseRepairsFencedTrailingComma(t *testing.T) {
	content := "```json\n{\"rubric_scores\": [{\"item\": \"Clarity\", \"points_earned\": 3,}], \"overall_feedback\": \"ok\",}\n```"

	result, err := ParseJudgeResponse(content)
	require.NoError(t, err)
	require.Len(t, result.RubricScores, 1)
	require.Equal(t, float64(3), result.RubricScores[0].PointsEarned)
	require.Equal(t, "ok", result.OverallFeedback)
}

func TestParseJudgeResponseAcceptsMissingLabels(t *testing.T) {
	result, err := ParseJudgeResponse(`{"rubric_scores": [{"points_earned": 1}]}`)
	require.NoError(t, err)
	require.Len(t, result.RubricScores, 1)
	require.Empty(t, result.RubricScores[0].Item)
	require.Empty(t, result.OverallFeedback)
}

func TestParseJudgeResponseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"empty":             "   ",
		"missing scores":    `{"overall_feedback": "fine"}`,
		"non numeric score": `{"rubric_scores": [{"item": "Clarity", "points_earned": "five"}]}`,
		"scores not array":  `{"rubric_scores": {"item": "Clarity"}}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJudgeResponse(content)
			require.Error(t, err)
		})
	}
}

func TestBuildJudgePromptListsRubricInOrder(t *testing.T) {
	prompt := buildJudgePrompt(JudgeInput{
		Prompt:     "Explain recursion",
		Rubric:     []Criterion{{Item: "Definition", Points: 5}, {Item: "Example", Points: 3}},
		AnswerText: "A function calling itself",
		Language:   "en",
	})

	require.Contains(t, prompt, "Explain recursion")
	require.Contains(t, prompt, "A function calling itself")
	require.Less(t, strings.Index(prompt, "Definition"), strings.Index(prompt, "Example"))
}
