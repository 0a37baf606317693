package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// CourseHandler exposes course authoring endpoints.
type CourseHandler struct {
	service service.CourseService
	logger  zerolog.Logger
}

// NewCourseHandler builds a course handler instance.
func NewCourseHandler(service service.CourseService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches the routes to a /courses group. Authoring is guarded by staffOnly.
func (h *CourseHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Post("/:courseId/assignments", staffOnly, h.addAssignment)
}

func (h *CourseHandler) addAssignment(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.AddAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.service.AddAssignment(requestContext(c), courseID, actorFromContext(c), payload)
	if err != nil {
		return writeError(c, *logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment added", result)
}
