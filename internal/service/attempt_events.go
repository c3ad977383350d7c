package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Attempt event types.
const (
	AttemptEventCreated    = "attempt.created"
	AttemptEventSelected   = "attempt.selected"
	AttemptEventStale      = "attempt.stale"
	AttemptEventReset      = "attempts.reset"
	AttemptEventSuperseded = "submission.superseded"
)

// AttemptEvent notifies listeners, such as grader dashboards, of attempt changes.
type AttemptEvent struct {
	Type          string    `json:"type"`
	SubmissionID  string    `json:"submission_id"`
	AssignmentID  string    `json:"assignment_id"`
	QuestionOrder *int      `json:"question_order,omitempty"`
	AttemptNumber *int      `json:"attempt_number,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	MaxScore      *float64  `json:"max_score,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher delivers attempt events. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event AttemptEvent)
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSEventPublisher publishes attempt events on a NATS subject. A nil
// connection yields a publisher that drops events.
func NewNATSEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	if conn == nil || subject == "" {
		return noopEventPublisher{}
	}
	return &natsEventPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "attempt_events").Logger(),
	}
}

func (p *natsEventPublisher) Publish(_ context.Context, event AttemptEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode attempt event")
		return
	}

	if err := p.conn.Publish(p.subject+"."+event.Type, payload); err != nil {
		p.logger.Warn().Err(err).Str("event", event.Type).Str("submission_id", event.SubmissionID).Msg("failed to publish attempt event")
	}
}

type noopEventPublisher struct{}

func (noopEventPublisher) Publish(context.Context, AttemptEvent) {}
