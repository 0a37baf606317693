package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// ActivityHandler exposes the staff audit trail.
type ActivityHandler struct {
	service service.AuditTrail
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.AuditTrail, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register mounts the handler routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var query dto.ActivityListRequest
	if err := c.QueryParser(&query); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	result, err := h.service.List(requestContext(c), query)
	if err != nil {
		return writeError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "activity retrieved", result)
}
