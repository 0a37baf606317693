package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// ProgressHandler exposes course progress views and lesson completion.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler builds a progress handler instance.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register attaches the routes to a /courses group.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/:courseId/progress", h.get)
	router.Post("/:courseId/lessons/:lessonId/complete", h.completeLesson)
}

func (h *ProgressHandler) get(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	studentID, err := targetStudent(c)
	if err != nil {
		return writeError(c, *logger, err)
	}

	progress, err := h.service.Get(requestContext(c), courseID, studentID)
	if err != nil {
		return writeError(c, *logger, err)
	}

	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *ProgressHandler) completeLesson(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	lessonID, err := parseUintParam(c, "lessonId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return writeError(c, *logger, errUnauthenticated)
	}

	result, err := h.service.CompleteLesson(requestContext(c), courseID, lessonID, studentID)
	if err != nil {
		return writeError(c, *logger, err)
	}

	return utils.SendSuccess(c, "lesson completed", result)
}
