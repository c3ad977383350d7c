package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assess-api/internal/config"
	"github.com/noah-isme/gema-assess-api/internal/handler"
	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/repository"
	"github.com/noah-isme/gema-assess-api/internal/router"
	"github.com/noah-isme/gema-assess-api/internal/service"
	"github.com/noah-isme/gema-assess-api/pkg/ai"
)

type fakeJudge struct {
	result ai.JudgeResult
	err    error
}

func (j *fakeJudge) Judge(context.Context, ai.JudgeInput) (ai.JudgeResult, error) {
	return j.result, j.err
}

type fakeStream struct {
	chunks []ai.ChatChunk
}

func (s *fakeStream) Recv() (ai.ChatChunk, error) {
	if len(s.chunks) == 0 {
		return ai.ChatChunk{}, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *fakeStream) Close() error { return nil }

// fakeStreamer replays the same script for every turn.
type fakeStreamer struct {
	mu     sync.Mutex
	script []ai.ChatChunk
}

func (s *fakeStreamer) StreamChat(context.Context, ai.ChatRequest) (ai.ChatStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := make([]ai.ChatChunk, len(s.script))
	copy(chunks, s.script)
	return &fakeStream{chunks: chunks}, nil
}

type assessmentTestApp struct {
	app      *fiber.App
	db       *gorm.DB
	judge    *fakeJudge
	streamer *fakeStreamer
}

func setupAssessmentApp(t *testing.T) assessmentTestApp {
	t.Helper()
	return setupAssessmentAppWithRole(t, "teacher")
}

func setupAssessmentAppWithRole(t *testing.T, role string) assessmentTestApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Assignment{}, &models.Submission{}, &models.ChatLog{}))
	require.NoError(t, db.Create(&models.Assignment{ID: "asg-1", Title: "Interview", IsPublic: true, Mode: models.AssignmentModeChat}).Error)

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	judge := &fakeJudge{result: ai.JudgeResult{
		RubricScores: []ai.JudgedItem{
			{Item: "Clarity", PointsEarned: 7, Feedback: "clear"},
			{Item: "Depth", PointsEarned: 3, Feedback: "ok"},
		},
		OverallFeedback: "Nice",
	}}
	streamer := &fakeStreamer{script: []ai.ChatChunk{{Content: "Hello "}, {Content: "there"}}}

	submissionRepo := repository.NewSubmissionRepository(db)
	store := service.NewAttemptStore(submissionRepo, nil, logger)
	assignments := service.NewAssignmentService(repository.NewAssignmentRepository(db), nil, time.Minute, logger)
	assessment := service.NewAssessmentService(
		service.NewRubricScorer(judge, logger),
		store,
		service.NewConversationOrchestrator(streamer, logger),
		service.NewChatLogService(repository.NewChatLogRepository(db), logger),
		assignments,
		nil,
		service.AssessmentConfig{},
		logger,
	)
	sessions := service.NewSessionService(submissionRepo, assignments, store, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret", TurnRateLimit: 100}, router.Dependencies{
		AssessmentHandler: handler.NewAssessmentHandler(assessment, validate, logger),
		TurnHandler:       handler.NewTurnHandler(assessment, validate, logger),
		SessionHandler:    handler.NewSessionHandler(sessions, validate, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignments, validate, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", "grader-1")
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return assessmentTestApp{app: app, db: db, judge: judge, streamer: streamer}
}

func (a assessmentTestApp) seedSubmission(t *testing.T) models.Submission {
	t.Helper()
	submission := models.Submission{
		ID:           uuid.NewString(),
		AssignmentID: "asg-1",
		Status:       models.SubmissionStatusInProgress,
		Answers:      models.AnswerMap{},
	}
	require.NoError(t, a.db.Create(&submission).Error)
	return submission
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func evaluateBody(submissionID string) map[string]interface{} {
	return map[string]interface{}{
		"submissionId":   submissionID,
		"questionOrder":  0,
		"answerText":     "A function that calls itself",
		"questionPrompt": "Explain recursion",
		"rubric": []map[string]interface{}{
			{"item": "Clarity", "points": 5},
			{"item": "Depth", "points": 5},
		},
		"language": "en",
	}
}

func TestEvaluateReturnsAttemptAndSubmission(t *testing.T) {
	ta := setupAssessmentApp(t)
	submission := ta.seedSubmission(t)

	resp := postJSON(t, ta.app, "/api/v1/assessments/evaluate", evaluateBody(submission.ID))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success    bool              `json:"success"`
		Attempt    models.Attempt    `json:"attempt"`
		Submission models.Submission `json:"submission"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	require.Equal(t, 1, payload.Attempt.AttemptNumber)
	require.Equal(t, 8.0, payload.Attempt.Score)
	require.Equal(t, 10.0, payload.Attempt.MaxScore)
	require.Equal(t, submission.ID, payload.Submission.ID)
	require.Len(t, payload.Submission.Answers[0].Attempts, 1)
}

func TestEvaluateRejectsInvalidPayload(t *testing.T) {
	ta := setupAssessmentApp(t)
	submission := ta.seedSubmission(t)

	body := evaluateBody(submission.ID)
	body["rubric"] = []map[string]interface{}{}
	resp := postJSON(t, ta.app, "/api/v1/assessments/evaluate", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, false, payload["success"])
	require.NotEmpty(t, payload["error"])

	body = evaluateBody(submission.ID)
	delete(body, "questionOrder")
	resp = postJSON(t, ta.app, "/api/v1/assessments/evaluate", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/assessments/evaluate", evaluateBody("missing"))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvaluateJudgeFailureReturnsDetails(t *testing.T) {
	ta := setupAssessmentApp(t)
	submission := ta.seedSubmission(t)
	ta.judge.err = errors.New("model overloaded")

	resp := postJSON(t, ta.app, "/api/v1/assessments/evaluate", evaluateBody(submission.ID))
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "evaluation failed", payload["error"])
	require.Contains(t, payload["details"], "model overloaded")

	var stored models.Submission
	require.NoError(t, ta.db.First(&stored, "id = ?", submission.ID).Error)
	require.Empty(t, stored.Answers)
}

func TestTurnStreamsServerSentEvents(t *testing.T) {
	ta := setupAssessmentApp(t)
	submission := ta.seedSubmission(t)

	resp := postJSON(t, ta.app, "/api/v1/assessments/turns", map[string]interface{}{
		"assignmentId":   "asg-1",
		"submissionId":   submission.ID,
		"questionOrder":  0,
		"questionPrompt": "Tell me about recursion",
		"rubric":         []map[string]interface{}{{"item": "Clarity", "points": 5}},
		"language":       "en",
		"messages": []map[string]interface{}{
			{"role": "assistant", "content": "Hi!"},
			{"role": "student", "content": "It is a function calling itself."},
		},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t,
		"data: {\"type\":\"text-delta\",\"content\":\"Hello \"}\n\n"+
			"data: {\"type\":\"text-delta\",\"content\":\"there\"}\n\n"+
			"data: {\"type\":\"done\"}\n\n",
		string(body))

	var logs []models.ChatLog
	require.NoError(t, ta.db.Where("submission_id = ?", submission.ID).Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)
	require.Equal(t, 1, logs[0].AttemptNumber)
	require.Equal(t, "Hello there", logs[1].Content)
}

func TestTurnStreamsTermination(t *testing.T) {
	ta := setupAssessmentApp(t)
	ta.streamer.script = []ai.ChatChunk{
		{Content: "Thanks."},
		{ToolCalls: []ai.ToolCallFragment{{Index: 0, Name: "end_conversation", Arguments: `{"reason":"refusal",`}}},
		{ToolCalls: []ai.ToolCallFragment{{Index: 0, Arguments: `"closing_message":"Goodbye."}`}}},
	}

	resp := postJSON(t, ta.app, "/api/v1/assessments/turns", map[string]interface{}{
		"assignmentId":   "asg-1",
		"questionOrder":  0,
		"questionPrompt": "Tell me about recursion",
		"messages":       []map[string]interface{}{{"role": "student", "content": "I'd rather not answer."}},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t,
		"data: {\"type\":\"text-delta\",\"content\":\"Thanks.\"}\n\n"+
			"data: {\"type\":\"text-delta\",\"content\":\"\\n\\nGoodbye.\"}\n\n"+
			"data: {\"type\":\"end_conversation\",\"reason\":\"refusal\"}\n\n"+
			"data: {\"type\":\"done\"}\n\n",
		string(body))
}

func turnBody(assignmentID, submissionID string) map[string]interface{} {
	return map[string]interface{}{
		"assignmentId":   assignmentID,
		"submissionId":   submissionID,
		"questionOrder":  0,
		"questionPrompt": "Tell me about recursion",
		"messages":       []map[string]interface{}{{"role": "student", "content": "It calls itself."}},
	}
}

func TestTurnRejectsSubmissionOfAnotherAssignment(t *testing.T) {
	ta := setupAssessmentApp(t)
	submission := ta.seedSubmission(t)

	resp := postJSON(t, ta.app, "/api/v1/assessments/turns", turnBody("some-other-assignment", submission.ID))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"type":"error"`)
	require.NotContains(t, string(body), "text-delta")

	var count int64
	require.NoError(t, ta.db.Model(&models.ChatLog{}).Where("submission_id = ?", submission.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestTurnRejectsSubmissionOwnedByAnotherUser(t *testing.T) {
	ta := setupAssessmentApp(t)
	owner := "someone-else"
	submission := models.Submission{
		ID:           uuid.NewString(),
		AssignmentID: "asg-1",
		UserID:       &owner,
		Status:       models.SubmissionStatusInProgress,
		Answers:      models.AnswerMap{},
	}
	require.NoError(t, ta.db.Create(&submission).Error)

	resp := postJSON(t, ta.app, "/api/v1/assessments/turns", turnBody("asg-1", submission.ID))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "data: {\"type\":\"error\",\"error\":\"forbidden\"}\n\n", string(body))

	var count int64
	require.NoError(t, ta.db.Model(&models.ChatLog{}).Where("submission_id = ?", submission.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestTurnRejectsInvalidPayload(t *testing.T) {
	ta := setupAssessmentApp(t)

	resp := postJSON(t, ta.app, "/api/v1/assessments/turns", map[string]interface{}{
		"assignmentId": "asg-1",
		"messages":     []map[string]interface{}{{"role": "teacher", "content": "hi"}},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON)
}

func TestGraderRoutesManageAttempts(t *testing.T) {
	ta := setupAssessmentApp(t)
	submission := ta.seedSubmission(t)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, ta.app, "/api/v1/assessments/evaluate", evaluateBody(submission.ID))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp := postJSON(t, ta.app, "/api/v1/grading/assessments/submissions/"+submission.ID+"/questions/0/select", map[string]int{"attemptNumber": 2})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/grading/assessments/submissions/"+submission.ID+"/questions/0/select", map[string]int{"attemptNumber": 7})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/grading/assessments/submissions/"+submission.ID+"/questions/0/attempts/1/stale", map[string]int{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/grading/assessments/submissions/"+submission.ID+"/reset", map[string]int{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grading/assessments/submissions/"+submission.ID, nil)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data models.Submission `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, 0, payload.Data.Answers.Get(0).ActiveAttempts())
	require.Equal(t, 2, *payload.Data.Answers[0].SelectedAttempt)
}

func TestGraderTranscriptListsTurnMessages(t *testing.T) {
	ta := setupAssessmentApp(t)
	submission := ta.seedSubmission(t)

	resp := postJSON(t, ta.app, "/api/v1/assessments/turns", turnBody("asg-1", submission.ID))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grading/assessments/submissions/"+submission.ID+"/questions/0/attempts/1/transcript", nil)
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data []models.ChatLog `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Data, 2)
	require.Equal(t, models.ChatRoleStudent, payload.Data[0].Role)
	require.Equal(t, "It calls itself.", payload.Data[0].Content)
	require.Equal(t, "Hello there", payload.Data[1].Content)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/grading/assessments/submissions/missing/questions/0/attempts/1/transcript", nil)
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/grading/assessments/submissions/"+submission.ID+"/questions/x/attempts/1/transcript", nil)
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGraderSupersedeStartsRespondentOver(t *testing.T) {
	ta := setupAssessmentApp(t)

	resp := postJSON(t, ta.app, "/api/v1/assessments/sessions/resolve", map[string]interface{}{
		"assignmentId":     "asg-1",
		"responderDetails": map[string]string{"name": "Ana"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var first struct {
		Data service.SessionState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	original := first.Data.Submission.ID

	resp = postJSON(t, ta.app, "/api/v1/grading/assessments/submissions/"+original+"/supersede", map[string]string{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stored models.Submission
	require.NoError(t, ta.db.Where("id = ?", original).First(&stored).Error)
	require.True(t, stored.Superseded)

	resp = postJSON(t, ta.app, "/api/v1/assessments/sessions/resolve", map[string]interface{}{
		"assignmentId":       "asg-1",
		"cachedSubmissionId": original,
		"responderDetails":   map[string]string{"name": "Ana"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var second struct {
		Data service.SessionState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	require.True(t, second.Data.Created)
	require.NotEqual(t, original, second.Data.Submission.ID)

	resp = postJSON(t, ta.app, "/api/v1/grading/assessments/submissions/missing/supersede", map[string]string{})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGraderSavesAssignmentSettings(t *testing.T) {
	ta := setupAssessmentApp(t)

	payload, err := json.Marshal(map[string]interface{}{"title": "Oral exam", "mode": "voice", "max_attempts": 3, "is_public": true})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/grading/assessments/assignments/asg-1", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/assessments/sessions/resolve", map[string]interface{}{
		"assignmentId":     "asg-1",
		"responderDetails": map[string]string{"name": "Ana"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var resolved struct {
		Data service.SessionState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&resolved))
	require.Equal(t, models.AssignmentModeVoice, resolved.Data.Mode)
	require.Equal(t, 3, resolved.Data.MaxAttempts)

	invalid, err := json.Marshal(map[string]interface{}{"title": "Oral exam", "mode": "video"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPut, "/api/v1/grading/assessments/assignments/asg-2", bytes.NewReader(invalid))
	req.Header.Set("Content-Type", "application/json")
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/grading/assessments/assignments/asg-2", nil)
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGraderRoutesRequireGraderRole(t *testing.T) {
	ta := setupAssessmentAppWithRole(t, "student")
	submission := ta.seedSubmission(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grading/assessments/submissions/"+submission.ID, nil)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/grading/assessments/submissions/"+submission.ID+"/reset", map[string]int{})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSessionResolveAndFinalize(t *testing.T) {
	ta := setupAssessmentApp(t)

	resp := postJSON(t, ta.app, "/api/v1/assessments/sessions/resolve", map[string]interface{}{
		"assignmentId":     "asg-1",
		"responderDetails": map[string]string{"name": "Ana"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var resolved struct {
		Data service.SessionState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&resolved))
	require.Equal(t, service.PhaseAnswering, resolved.Data.Phase)
	require.True(t, resolved.Data.Created)
	submissionID := resolved.Data.Submission.ID

	resp = postJSON(t, ta.app, "/api/v1/assessments/submissions/"+submissionID+"/finalize", map[string]string{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/assessments/evaluate", evaluateBody(submissionID))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = postJSON(t, ta.app, "/api/v1/assessments/sessions/resolve", map[string]interface{}{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTurnWebsocketStreamsEvents(t *testing.T) {
	ta := setupAssessmentApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ta.app.Listener(ln) }()
	t.Cleanup(func() { _ = ta.app.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/api/v1/assessments/turns/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"assignmentId":   "asg-1",
		"questionOrder":  1,
		"questionPrompt": "Describe your last project",
		"messages":       []map[string]interface{}{{"role": "student", "content": "I built a compiler."}},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var received []service.StreamEvent
	for {
		var event service.StreamEvent
		require.NoError(t, conn.ReadJSON(&event))
		received = append(received, event)
		if event.Type == service.StreamEventDone || event.Type == service.StreamEventError {
			break
		}
	}

	require.Equal(t, []service.StreamEvent{
		{Type: service.StreamEventTextDelta, Content: "Hello "},
		{Type: service.StreamEventTextDelta, Content: "there"},
		{Type: service.StreamEventDone},
	}, received)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"assignmentId": "asg-1"}))
	var invalid service.StreamEvent
	require.NoError(t, conn.ReadJSON(&invalid))
	require.Equal(t, service.StreamEventError, invalid.Type)
}
