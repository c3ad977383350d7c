package ai

import "context"

// Criterion is one rubric line handed to the judge.
type Criterion struct {
	Item   string  `json:"item"`
	Points float64 `json:"points"`
}

// JudgeInput contains everything the judge needs to score one answer.
type JudgeInput struct {
	Prompt     string
	Rubric     []Criterion
	AnswerText string
	Language   string
}

// JudgedItem is a per-criterion score exactly as the model returned it.
// Values are not trusted; callers clamp them against the rubric.
type JudgedItem struct {
	Item           string  `json:"item"`
	PointsEarned   float64 `json:"points_earned"`
	PointsPossible float64 `json:"points_possible"`
	Feedback       string  `json:"feedback"`
}

// JudgeResult is the structured output of a judge call.
type JudgeResult struct {
	RubricScores    []JudgedItem `json:"rubric_scores"`
	OverallFeedback string       `json:"overall_feedback"`
}

// Judge scores an answer against a rubric with a single model request.
type Judge interface {
	Judge(ctx context.Context, input JudgeInput) (JudgeResult, error)
}

// Chat roles understood by ChatStreamer implementations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single prompt message.
type ChatMessage struct {
	Role    string
	Content string
}

// Tool describes a function the model may invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  interface{}
}

// ChatRequest is one streamed completion request.
type ChatRequest struct {
	Messages []ChatMessage
	Tools    []Tool
}

// ToolCallFragment is a piece of a streamed tool invocation. Arguments may be
// any substring of the final JSON payload.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ChatChunk is one streamed delta.
type ChatChunk struct {
	Content   string
	ToolCalls []ToolCallFragment
}

// ChatStream yields chunks until Recv returns io.EOF.
type ChatStream interface {
	Recv() (ChatChunk, error)
	Close() error
}

// ChatStreamer opens streamed chat completions.
type ChatStreamer interface {
	StreamChat(ctx context.Context, request ChatRequest) (ChatStream, error)
}
