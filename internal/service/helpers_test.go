package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/pkg/ai"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Assignment{}, &models.Submission{}, &models.ChatLog{}))
	return db
}

func seedSubmission(t *testing.T, db *gorm.DB, assignmentID string, userID *string) models.Submission {
	t.Helper()

	submission := models.Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		UserID:       userID,
		Status:       models.SubmissionStatusInProgress,
		Answers:      models.AnswerMap{},
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func stringPointer(v string) *string {
	return &v
}

type stubJudge struct {
	result ai.JudgeResult
	err    error
	calls  int
	inputs []ai.JudgeInput
}

func (j *stubJudge) Judge(_ context.Context, input ai.JudgeInput) (ai.JudgeResult, error) {
	j.calls++
	j.inputs = append(j.inputs, input)
	return j.result, j.err
}

type scriptedStream struct {
	chunks []ai.ChatChunk
	err    error
	closed bool
}

func (s *scriptedStream) Recv() (ai.ChatChunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return ai.ChatChunk{}, s.err
		}
		return ai.ChatChunk{}, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type scriptedStreamer struct {
	stream   *scriptedStream
	openErr  error
	requests []ai.ChatRequest
}

func (s *scriptedStreamer) StreamChat(_ context.Context, request ai.ChatRequest) (ai.ChatStream, error) {
	s.requests = append(s.requests, request)
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.stream, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []StreamEvent
	// failAfter makes Send fail once this many events were delivered. Zero never fails.
	failAfter int
	onSend    func(count int)
}

func (s *recordingSink) Send(event StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && len(s.events) >= s.failAfter {
		return io.ErrClosedPipe
	}
	s.events = append(s.events, event)
	if s.onSend != nil {
		s.onSend(len(s.events))
	}
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, event := range s.events {
		types = append(types, event.Type)
	}
	return types
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []AttemptEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event AttemptEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) typesPublished() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}
