package service

import (
	"encoding/json"
	"fmt"
)

// Stream event types delivered to conversational clients.
const (
	StreamEventTextDelta       = "text-delta"
	StreamEventEndConversation = "end_conversation"
	StreamEventDone            = "done"
	StreamEventError           = "error"
)

// Termination reasons accepted from the model.
const (
	TerminationRefusal  = "refusal"
	TerminationThorough = "thorough"
)

// StreamEvent is one message of the turn stream. Only the fields relevant to
// the event type are encoded.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TextDelta builds a visible text chunk event.
func TextDelta(content string) StreamEvent {
	return StreamEvent{Type: StreamEventTextDelta, Content: content}
}

// EndConversation builds the structured termination event.
func EndConversation(reason string) StreamEvent {
	return StreamEvent{Type: StreamEventEndConversation, Reason: reason}
}

// Done builds the terminal success event.
func Done() StreamEvent {
	return StreamEvent{Type: StreamEventDone}
}

// StreamError builds the in-band failure event.
func StreamError(message string) StreamEvent {
	return StreamEvent{Type: StreamEventError, Error: message}
}

// EncodeSSE frames an event as a server-sent-event data line.
func EncodeSSE(event StreamEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode stream event: %w", err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}

// EventSink receives stream events in emission order. A send error means the
// client went away.
type EventSink interface {
	Send(event StreamEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event StreamEvent) error

// Send implements EventSink.
func (f EventSinkFunc) Send(event StreamEvent) error {
	return f(event)
}
