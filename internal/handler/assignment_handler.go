package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/dto"
	"github.com/noah-isme/gema-assess-api/internal/service"
	"github.com/noah-isme/gema-assess-api/internal/utils"
)

// AssignmentHandler lets graders read and update assignment settings.
type AssignmentHandler struct {
	service   service.AssignmentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, validator *validator.Validate, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// RegisterGrader wires the settings endpoints into the grader group.
func (h *AssignmentHandler) RegisterGrader(router fiber.Router) {
	router.Get("/assignments/:id", h.get)
	router.Put("/assignments/:id", h.save)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	assignment, err := h.service.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) save(c *fiber.Ctx) error {
	var payload dto.SaveAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Save(requestContext(c), payload.ToModel(c.Params("id")))
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Str("assignment_id", assignment.ID).
		Str("grader_id", userIDFromContext(c)).
		Msg("assignment settings updated")
	return utils.SendSuccess(c, "assignment saved", assignment)
}
