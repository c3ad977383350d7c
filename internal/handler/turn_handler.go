package handler

import (
	"bufio"
	"context"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/dto"
	"github.com/noah-isme/gema-assess-api/internal/service"
	"github.com/noah-isme/gema-assess-api/internal/utils"
)

// TurnHandler streams conversational turns over SSE and websocket.
type TurnHandler struct {
	service   service.AssessmentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTurnHandler constructs the turn handler.
func NewTurnHandler(service service.AssessmentService, validator *validator.Validate, logger zerolog.Logger) *TurnHandler {
	return &TurnHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "turn_handler").Logger(),
	}
}

// Register binds the SSE endpoint. Extra handlers run before it, typically a
// rate limiter.
func (h *TurnHandler) Register(router fiber.Router, handlers ...fiber.Handler) {
	router.Post("/turns", append(handlers, h.stream)...)
}

// RegisterWebsocket binds the websocket variant of the turn endpoint.
func (h *TurnHandler) RegisterWebsocket(router fiber.Router) {
	router.Use("/turns/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			c.Locals("turn_user_id", userIDFromContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/turns/ws", websocket.New(h.handleConnection))
}

func (h *TurnHandler) stream(c *fiber.Ctx) error {
	var payload dto.TurnExchangeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	request := payload.ToServiceRequest(userIDFromContext(c))
	logger := *requestLogger(h.logger, c)
	ctx, cancel := context.WithCancel(requestContext(c))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		outcome := h.service.Turn(ctx, request, &sseSink{writer: w, cancel: cancel})
		logger.Debug().
			Str("submission_id", request.SubmissionID).
			Int("question_order", request.QuestionOrder).
			Bool("aborted", outcome.Aborted).
			Bool("terminated", outcome.Termination != nil).
			Msg("turn stream finished")
	})

	return nil
}

// sseSink writes each event as one data frame and flushes immediately. A
// failed write means the client disconnected and cancels the upstream call.
type sseSink struct {
	writer *bufio.Writer
	cancel context.CancelFunc
}

func (s *sseSink) Send(event service.StreamEvent) error {
	frame, err := service.EncodeSSE(event)
	if err != nil {
		return err
	}
	if _, err := s.writer.Write(frame); err != nil {
		s.cancel()
		return err
	}
	if err := s.writer.Flush(); err != nil {
		s.cancel()
		return err
	}
	return nil
}

// wsSink writes events as JSON text frames.
type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(event service.StreamEvent) error {
	return s.conn.WriteJSON(event)
}

// handleConnection runs one turn per inbound frame. A new frame cancels the
// turn in flight and waits for it before starting, so only one goroutine
// writes to the connection at a time.
func (h *TurnHandler) handleConnection(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	correlation, _ := conn.Locals("correlation_id").(string)
	userID, _ := conn.Locals("turn_user_id").(string)
	logger := h.logger.With().Str("correlation_id", correlation).Logger()

	var (
		wg     sync.WaitGroup
		cancel context.CancelFunc = func() {}
	)
	stop := func() {
		cancel()
		wg.Wait()
	}
	defer stop()

	for {
		var payload dto.TurnExchangeRequest
		if err := conn.ReadJSON(&payload); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, context.Canceled) {
				logger.Debug().Err(err).Msg("turn websocket read ended")
			}
			return
		}

		stop()

		if err := h.validator.Struct(payload); err != nil {
			if writeErr := conn.WriteJSON(service.StreamError(err.Error())); writeErr != nil {
				return
			}
			continue
		}

		request := payload.ToServiceRequest(userID)
		var turnCtx context.Context
		turnCtx, cancel = context.WithCancel(baseCtx)
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()
			outcome := h.service.Turn(ctx, request, wsSink{conn: conn})
			logger.Debug().
				Str("submission_id", request.SubmissionID).
				Int("question_order", request.QuestionOrder).
				Bool("aborted", outcome.Aborted).
				Msg("turn websocket exchange finished")
		}(turnCtx)
	}
}
