package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// AssignmentHandler wires assignment endpoints.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs a handler instance.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Listing is guarded by staffOnly.
func (h *AssignmentHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Get("", staffOnly, h.list)
	router.Get("/:id", h.get)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	var query dto.AssignmentListRequest
	if err := c.QueryParser(&query); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	result, err := h.service.List(requestContext(c), query)
	if err != nil {
		return writeError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "assignments retrieved", result)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	assignment, err := h.service.Get(requestContext(c), id, isStaff(userRoleFromContext(c)))
	if err != nil {
		return writeError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}
