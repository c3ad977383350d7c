package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/dto"
	"github.com/noah-isme/gema-assess-api/internal/service"
	"github.com/noah-isme/gema-assess-api/internal/utils"
)

// SessionHandler resolves and finalizes respondent sessions.
type SessionHandler struct {
	service   service.SessionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSessionHandler constructs the session handler.
func NewSessionHandler(service service.SessionService, validator *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register binds session routes under the provided router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("/sessions/resolve", h.resolve)
	router.Post("/submissions/:id/finalize", h.finalize)
}

func (h *SessionHandler) resolve(c *fiber.Ctx) error {
	var payload dto.ResolveSessionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.service.Resolve(requestContext(c), payload.ToServiceRequest(userIDFromContext(c)))
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "session resolved", state)
}

func (h *SessionHandler) finalize(c *fiber.Ctx) error {
	submission, err := h.service.Finalize(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission completed", submission)
}
