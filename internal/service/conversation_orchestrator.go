package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/observability"
	"github.com/noah-isme/gema-assess-api/pkg/ai"
)

const endConversationTool = "end_conversation"

// ConversationMessage is one prior turn supplied by the client.
type ConversationMessage struct {
	Role    string `json:"role" validate:"required,oneof=student assistant"`
	Content string `json:"content"`
}

// TurnInput is everything needed to produce one assistant reply. The
// orchestrator keeps no state between turns.
type TurnInput struct {
	QuestionPrompt string
	Rubric         []models.RubricItem
	Language       string
	Messages       []ConversationMessage
	SystemPrompt   string
	Greeting       string
	SharedContext  string
	ExpectedAnswer string
}

// Termination is a model-issued request to end the conversation.
type Termination struct {
	Reason         string `json:"reason"`
	ClosingMessage string `json:"closing_message"`
}

// TurnOutcome summarises a finished turn stream.
type TurnOutcome struct {
	// Text is the visible reply delivered to the client, closing message included.
	Text        string
	Termination *Termination
	// Aborted is set when the client went away before the stream finished.
	Aborted bool
	Err     error
}

// ConversationOrchestrator streams one assistant turn.
type ConversationOrchestrator interface {
	Stream(ctx context.Context, input TurnInput, sink EventSink) TurnOutcome
}

type conversationOrchestrator struct {
	streamer ai.ChatStreamer
	logger   zerolog.Logger
}

// NewConversationOrchestrator builds an orchestrator over a streaming chat model.
func NewConversationOrchestrator(streamer ai.ChatStreamer, logger zerolog.Logger) ConversationOrchestrator {
	return &conversationOrchestrator{
		streamer: streamer,
		logger:   logger.With().Str("component", "conversation_orchestrator").Logger(),
	}
}

func (o *conversationOrchestrator) Stream(ctx context.Context, input TurnInput, sink EventSink) TurnOutcome {
	start := time.Now()
	outcome := o.stream(ctx, input, sink)
	observability.StreamDuration().Observe(time.Since(start).Seconds())

	label := "done"
	switch {
	case outcome.Aborted:
		label = "aborted"
	case outcome.Err != nil:
		label = "error"
	case outcome.Termination != nil:
		label = "terminated"
	}
	observability.StreamOutcomes().WithLabelValues(label).Inc()
	return outcome
}

func (o *conversationOrchestrator) stream(ctx context.Context, input TurnInput, sink EventSink) TurnOutcome {
	var text strings.Builder
	send := func(event StreamEvent) error {
		if err := sink.Send(event); err != nil {
			return err
		}
		observability.StreamEvents().WithLabelValues(event.Type).Inc()
		return nil
	}
	aborted := func(reason error) TurnOutcome {
		o.logger.Debug().Err(reason).Int("delivered_chars", text.Len()).Msg("turn stream aborted by client")
		return TurnOutcome{Text: text.String(), Aborted: true}
	}
	fail := func(err error) TurnOutcome {
		o.logger.Error().Err(err).Msg("turn stream failed")
		if sendErr := send(StreamError(err.Error())); sendErr != nil {
			return aborted(sendErr)
		}
		return TurnOutcome{Text: text.String(), Err: err}
	}

	if o.streamer == nil {
		return fail(errors.New("chat model not configured"))
	}

	firstTurn := isFirstTurn(input.Messages)
	request := ai.ChatRequest{Messages: buildTurnMessages(input, firstTurn)}
	if !firstTurn {
		request.Tools = []ai.Tool{endConversationToolSpec(input.Language)}
	}

	stream, err := o.streamer.StreamChat(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return aborted(ctx.Err())
		}
		return fail(err)
	}
	defer stream.Close()

	accumulator := newTerminationAccumulator()
	for {
		if ctx.Err() != nil {
			return aborted(ctx.Err())
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return aborted(err)
			}
			return fail(err)
		}

		if chunk.Content != "" {
			if err := send(TextDelta(chunk.Content)); err != nil {
				return aborted(err)
			}
			text.WriteString(chunk.Content)
		}
		for _, fragment := range chunk.ToolCalls {
			accumulator.add(fragment)
		}
	}

	outcome := TurnOutcome{}
	termination, err := accumulator.termination()
	if err != nil {
		o.logger.Warn().Err(err).Msg("ignoring malformed end_conversation call")
	}

	if termination != nil {
		if closing := strings.TrimSpace(termination.ClosingMessage); closing != "" {
			if text.Len() > 0 {
				closing = "\n\n" + closing
			}
			if err := send(TextDelta(closing)); err != nil {
				return aborted(err)
			}
			text.WriteString(closing)
		}
		if err := send(EndConversation(termination.Reason)); err != nil {
			return aborted(err)
		}
		outcome.Termination = termination
	}

	if err := send(Done()); err != nil {
		return aborted(err)
	}

	outcome.Text = text.String()
	return outcome
}

func isFirstTurn(messages []ConversationMessage) bool {
	for _, message := range messages {
		if message.Role == models.ChatRoleStudent && strings.TrimSpace(message.Content) != "" {
			return false
		}
	}
	return true
}

type toolCallBuffer struct {
	name      string
	arguments strings.Builder
}

// terminationAccumulator collects streamed tool-call fragments, keyed by the
// tool call index, until the stream ends.
type terminationAccumulator struct {
	calls map[int]*toolCallBuffer
	order []int
}

func newTerminationAccumulator() *terminationAccumulator {
	return &terminationAccumulator{calls: make(map[int]*toolCallBuffer)}
}

func (a *terminationAccumulator) add(fragment ai.ToolCallFragment) {
	call, ok := a.calls[fragment.Index]
	if !ok {
		call = &toolCallBuffer{}
		a.calls[fragment.Index] = call
		a.order = append(a.order, fragment.Index)
	}
	if fragment.Name != "" {
		call.name = fragment.Name
	}
	if fragment.Arguments != "" {
		call.arguments.WriteString(fragment.Arguments)
	}
}

// termination returns the first end_conversation call whose arguments parse.
// It returns an error describing the last rejected call when none does.
func (a *terminationAccumulator) termination() (*Termination, error) {
	var lastErr error
	for _, index := range a.order {
		call := a.calls[index]
		if call.name != endConversationTool {
			continue
		}

		raw := strings.TrimSpace(call.arguments.String())
		if raw == "" {
			lastErr = errors.New("end_conversation called without arguments")
			continue
		}

		var parsed Termination
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			lastErr = fmt.Errorf("parse end_conversation arguments: %w", err)
			continue
		}
		if parsed.Reason != TerminationRefusal && parsed.Reason != TerminationThorough {
			lastErr = fmt.Errorf("unknown end_conversation reason %q", parsed.Reason)
			continue
		}
		return &parsed, nil
	}
	return nil, lastErr
}

func endConversationToolSpec(language string) ai.Tool {
	return ai.Tool{
		Name: endConversationTool,
		Description: "End the conversation. Use reason \"refusal\" when the student explicitly declines to answer, " +
			"or \"thorough\" when the student's answer already satisfies every rubric item. " +
			"closing_message is shown to the student and must be written in " + languageOrDefault(language) + ".",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reason": map[string]interface{}{
					"type": "string",
					"enum": []string{TerminationRefusal, TerminationThorough},
				},
				"closing_message": map[string]interface{}{
					"type": "string",
				},
			},
			"required":             []string{"reason", "closing_message"},
			"additionalProperties": false,
		},
	}
}

func languageOrDefault(language string) string {
	if strings.TrimSpace(language) == "" {
		return "English"
	}
	return language
}

func buildTurnMessages(input TurnInput, firstTurn bool) []ai.ChatMessage {
	messages := []ai.ChatMessage{{Role: ai.RoleSystem, Content: buildSystemInstructions(input, firstTurn)}}
	for _, message := range input.Messages {
		content := strings.TrimSpace(message.Content)
		if content == "" {
			continue
		}
		role := ai.RoleAssistant
		if message.Role == models.ChatRoleStudent {
			role = ai.RoleUser
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: content})
	}
	return messages
}

func buildSystemInstructions(input TurnInput, firstTurn bool) string {
	builder := strings.Builder{}
	if custom := strings.TrimSpace(input.SystemPrompt); custom != "" {
		builder.WriteString(custom)
	} else {
		builder.WriteString("You are an oral examiner talking with a student about one question. ")
		builder.WriteString("Ask short follow-up questions that help the student show what they know for each rubric item. ")
		builder.WriteString("Never give away the answer and never state a score.")
	}

	builder.WriteString("\n\nRespond only in ")
	builder.WriteString(languageOrDefault(input.Language))
	builder.WriteString(".\n\n# Question\n")
	builder.WriteString(input.QuestionPrompt)

	if len(input.Rubric) > 0 {
		builder.WriteString("\n\n# Rubric\n")
		for i, item := range input.Rubric {
			fmt.Fprintf(&builder, "%d. %s (%g points)\n", i+1, item.Item, item.Points)
		}
	}
	if shared := strings.TrimSpace(input.SharedContext); shared != "" {
		builder.WriteString("\n# Context shared with the student\n")
		builder.WriteString(shared)
		builder.WriteString("\n")
	}
	if expected := strings.TrimSpace(input.ExpectedAnswer); expected != "" {
		builder.WriteString("\n# Reference answer (never reveal)\n")
		builder.WriteString(expected)
		builder.WriteString("\n")
	}

	if firstTurn {
		builder.WriteString("\n# This turn\n")
		if greeting := strings.TrimSpace(input.Greeting); greeting != "" {
			builder.WriteString("Open with this greeting: ")
			builder.WriteString(greeting)
			builder.WriteString("\n")
		}
		builder.WriteString("Introduce yourself, restate the question in your own words and describe what a complete answer should cover. ")
		builder.WriteString("Do not evaluate or comment on any answer yet; the student has not answered.")
	} else {
		builder.WriteString("\n# Ending the conversation\n")
		builder.WriteString("Call end_conversation when the student refuses to answer or when their answer already covers every rubric item. ")
		builder.WriteString("Otherwise keep the conversation going with one focused follow-up.")
	}
	return builder.String()
}
