package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// judgeResponseSchema is sent to the model as the strict response format.
const judgeResponseSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["rubric_scores", "overall_feedback"],
  "properties": {
    "rubric_scores": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["item", "points_earned", "points_possible", "feedback"],
        "properties": {
          "item": {"type": "string"},
          "points_earned": {"type": "number"},
          "points_possible": {"type": "number"},
          "feedback": {"type": "string"}
        }
      }
    },
    "overall_feedback": {"type": "string"}
  }
}`

// judgeAcceptSchema is what a response must satisfy to be used at all.
// Labels and feedback may be missing; the caller fills them in.
const judgeAcceptSchema = `{
  "type": "object",
  "required": ["rubric_scores"],
  "properties": {
    "rubric_scores": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["points_earned"],
        "properties": {
          "item": {"type": ["string", "null"]},
          "points_earned": {"type": "number"},
          "points_possible": {"type": ["number", "null"]},
          "feedback": {"type": ["string", "null"]}
        }
      }
    },
    "overall_feedback": {"type": ["string", "null"]}
  }
}`

var acceptSchema = jsonschemav5.MustCompileString("judge_response.json", judgeAcceptSchema)

// ParseJudgeResponse decodes a judge reply. Near-JSON output (code fences,
// trailing commas, truncated braces) is repaired before validation.
func ParseJudgeResponse(content string) (JudgeResult, error) {
	content = stripCodeFence(strings.TrimSpace(content))
	if content == "" {
		return JudgeResult{}, fmt.Errorf("empty judge response")
	}

	if !json.Valid([]byte(content)) {
		repaired, err := jsonrepair.JSONRepair(content)
		if err != nil {
			return JudgeResult{}, fmt.Errorf("repair judge json: %w", err)
		}
		content = repaired
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(content), &generic); err != nil {
		return JudgeResult{}, fmt.Errorf("parse judge json: %w", err)
	}
	if err := acceptSchema.Validate(generic); err != nil {
		return JudgeResult{}, fmt.Errorf("judge response does not match schema: %w", err)
	}

	var result JudgeResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return JudgeResult{}, fmt.Errorf("decode judge json: %w", err)
	}
	return result, nil
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(content, '\n'); newline >= 0 {
		content = content[newline+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
