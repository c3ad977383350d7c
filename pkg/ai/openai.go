package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	judgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assess",
		Subsystem: "ai",
		Name:      "judge_duration_seconds",
		Help:      "Duration of rubric judge requests",
	}, []string{"model"})

	judgeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "ai",
		Name:      "judge_failures_total",
		Help:      "Number of rubric judge failures",
	}, []string{"model"})

	chatStreamOpenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "ai",
		Name:      "chat_stream_open_failures_total",
		Help:      "Number of chat streams that failed to open",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	JudgeModel  string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIClient implements Judge and ChatStreamer against the chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.JudgeModel == "" {
		cfg.JudgeModel = cfg.ChatModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-assess-api/pkg/ai"),
		logger: logger.With().Str("component", "openai_client").Logger(),
	}, nil
}

// Judge sends one structured-output scoring request.
func (c *OpenAIClient) Judge(parent context.Context, input JudgeInput) (JudgeResult, error) {
	ctx, span := c.tracer.Start(parent, "openai.judge", trace.WithAttributes(
		attribute.String("model", c.cfg.JudgeModel),
		attribute.Int("rubric_items", len(input.Rubric)),
	))
	defer span.End()

	fail := func(err error) (JudgeResult, error) {
		judgeFailures.WithLabelValues(c.cfg.JudgeModel).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return JudgeResult{}, err
	}

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.JudgeModel,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt(input.Language)},
			{Role: openai.ChatMessageRoleUser, Content: buildJudgePrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "rubric_evaluation",
				Schema: json.RawMessage(judgeResponseSchema),
				Strict: true,
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	judgeDuration.WithLabelValues(c.cfg.JudgeModel).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(fmt.Errorf("openai judge: %w", err))
	}
	if len(resp.Choices) == 0 {
		return fail(fmt.Errorf("no choices returned from openai"))
	}

	result, err := ParseJudgeResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(
		attribute.Int("usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	return result, nil
}

// StreamChat opens a streamed completion with the given tools attached.
func (c *OpenAIClient) StreamChat(parent context.Context, request ChatRequest) (ChatStream, error) {
	ctx, span := c.tracer.Start(parent, "openai.stream_chat", trace.WithAttributes(
		attribute.String("model", c.cfg.ChatModel),
		attribute.Int("messages", len(request.Messages)),
	))

	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages))
	for _, message := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: message.Role, Content: message.Content})
	}

	tools := make([]openai.Tool, 0, len(request.Tools))
	for _, tool := range request.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	completionRequest := openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    messages,
		Stream:      true,
	}
	if len(tools) > 0 {
		completionRequest.Tools = tools
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, completionRequest)
	if err != nil {
		chatStreamOpenFailures.WithLabelValues(c.cfg.ChatModel).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	return &openAIChatStream{stream: stream, span: span}, nil
}

type openAIChatStream struct {
	stream *openai.ChatCompletionStream
	span   trace.Span
}

func (s *openAIChatStream) Recv() (ChatChunk, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		return ChatChunk{}, err
	}

	if len(resp.Choices) == 0 {
		return ChatChunk{}, nil
	}

	delta := resp.Choices[0].Delta
	chunk := ChatChunk{Content: delta.Content}
	for position, call := range delta.ToolCalls {
		index := position
		if call.Index != nil {
			index = *call.Index
		}
		chunk.ToolCalls = append(chunk.ToolCalls, ToolCallFragment{
			Index:     index,
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return chunk, nil
}

func (s *openAIChatStream) Close() error {
	defer s.span.End()
	return s.stream.Close()
}

func judgeSystemPrompt(language string) string {
	if strings.TrimSpace(language) == "" {
		language = "English"
	}
	return "You are a strict but fair examiner. Score the answer against every rubric item in the order given. " +
		"For each item award points_earned between 0 and the item's points and explain briefly. " +
		"Write all feedback in " + language + ". Respond only with the requested JSON object."
}

func buildJudgePrompt(input JudgeInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.Prompt)
	builder.WriteString("\n\n## Rubric\n")
	for i, criterion := range input.Rubric {
		fmt.Fprintf(&builder, "%d. %s (%g points)\n", i+1, criterion.Item, criterion.Points)
	}
	builder.WriteString("\n## Answer\n")
	builder.WriteString(input.AnswerText)
	builder.WriteString("\n\nReturn JSON with rubric_scores in rubric order and overall_feedback.")
	return builder.String()
}
