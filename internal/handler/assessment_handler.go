package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/dto"
	"github.com/noah-isme/gema-assess-api/internal/service"
	"github.com/noah-isme/gema-assess-api/internal/utils"
)

// AssessmentHandler exposes evaluation and grader attempt management endpoints.
type AssessmentHandler struct {
	service   service.AssessmentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(service service.AssessmentService, validator *validator.Validate, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register wires the respondent endpoints into the router group.
func (h *AssessmentHandler) Register(router fiber.Router) {
	router.Post("/evaluate", h.evaluate)
}

// RegisterGrader wires the grader endpoints into the router group.
func (h *AssessmentHandler) RegisterGrader(router fiber.Router) {
	router.Get("/submissions/:id", h.get)
	router.Post("/submissions/:id/reset", h.reset)
	router.Post("/submissions/:id/questions/:order/select", h.selectAttempt)
	router.Post("/submissions/:id/questions/:order/attempts/:attempt/stale", h.markStale)
	router.Get("/submissions/:id/questions/:order/attempts/:attempt/transcript", h.transcript)
	router.Post("/submissions/:id/supersede", h.supersede)
}

func (h *AssessmentHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Evaluate(requestContext(c), payload.ToServiceRequest(userIDFromContext(c)))
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.EvaluateResponse{
		Success:    true,
		Attempt:    result.Attempt,
		Submission: result.Submission,
	})
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	submission, err := h.service.GetSubmission(requestContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *AssessmentHandler) reset(c *fiber.Ctx) error {
	submission, err := h.service.ResetAttempts(requestContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Str("submission_id", submission.ID).
		Str("grader_id", userIDFromContext(c)).
		Str("grader_role", userRoleFromContext(c)).
		Msg("submission attempts reset")
	return utils.SendSuccess(c, "attempts marked stale", submission)
}

func (h *AssessmentHandler) selectAttempt(c *fiber.Ctx) error {
	order, err := parseIntParam(c, "order")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SelectAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.SelectAttempt(requestContext(c), c.Params("id"), order, payload.AttemptNumber)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attempt selected", submission)
}

func (h *AssessmentHandler) markStale(c *fiber.Ctx) error {
	order, err := parseIntParam(c, "order")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	attempt, err := parseIntParam(c, "attempt")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.MarkAttemptStale(requestContext(c), c.Params("id"), order, attempt)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attempt marked stale", submission)
}

func (h *AssessmentHandler) transcript(c *fiber.Ctx) error {
	order, err := parseIntParam(c, "order")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	attempt, err := parseIntParam(c, "attempt")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.service.Transcript(requestContext(c), c.Params("id"), order, attempt)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "transcript retrieved", entries)
}

func (h *AssessmentHandler) supersede(c *fiber.Ctx) error {
	submission, err := h.service.Supersede(requestContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Str("submission_id", submission.ID).
		Str("grader_id", userIDFromContext(c)).
		Msg("submission superseded")
	return utils.SendSuccess(c, "submission superseded", submission)
}

func (h *AssessmentHandler) handleError(c *fiber.Ctx, err error) error {
	return respondServiceError(c, h.logger, err)
}

// respondServiceError maps assessment errors onto HTTP responses. Server-side
// failures include the cause in details so the client can offer a retry.
func respondServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrAssignmentMismatch), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrContentLocked):
		return utils.Fail(c, fiber.StatusForbidden, "content locked", err.Error())
	case errors.Is(err, service.ErrMaxAttemptsReached), errors.Is(err, service.ErrSubmissionClosed):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrJudgeFailed):
		requestLogger(logger, c).Error().Err(err).Msg("evaluation failed")
		return utils.Fail(c, fiber.StatusInternalServerError, service.ErrJudgeFailed.Error(), err.Error())
	case errors.Is(err, service.ErrPersistence):
		requestLogger(logger, c).Error().Err(err).Msg("persistence failed")
		return utils.Fail(c, fiber.StatusInternalServerError, service.ErrPersistence.Error(), err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg("assessment operation failed")
		return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", err.Error())
	}
}
