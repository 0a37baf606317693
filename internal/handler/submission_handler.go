package handler

import (
	"errors"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Grading is guarded by staffOnly.
func (h *SubmissionHandler) Register(router fiber.Router, studentOnly, staffOnly fiber.Handler) {
	router.Post("", studentOnly, h.submit)
	router.Get("/:assignmentId", h.get)
	router.Patch("/:id/attempts/:sequence", staffOnly, h.grade)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return writeError(c, *logger, errUnauthenticated)
	}

	var (
		payload dto.SubmitRequest
		file    *multipart.FileHeader
		release func() error
	)

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, "invalid multipart form")
		}
		release = form.RemoveAll

		payload.AssignmentID, err = formUint(form, "assignment_id")
		if err != nil {
			_ = release()
			return badRequest(c, err.Error())
		}
		payload.CourseID, err = formUint(form, "course_id")
		if err != nil {
			_ = release()
			return badRequest(c, err.Error())
		}
		payload.Content = form.Value["content"]
		if files := form.File["file"]; len(files) > 0 {
			file = files[0]
		}
	} else if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	payload.StudentID = studentID

	result, err := h.service.Submit(requestContext(c), payload, file, release)
	if err != nil {
		return writeError(c, *logger, err)
	}

	if result.Created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", result)
	}
	return utils.SendSuccess(c, "submission updated", result)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	studentID, err := targetStudent(c)
	if err != nil {
		return writeError(c, *logger, err)
	}

	submission, err := h.service.Get(requestContext(c), assignmentID, studentID)
	if err != nil {
		return writeError(c, *logger, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	sequence, err := strconv.Atoi(c.Params("sequence"))
	if err != nil || sequence < 1 {
		return badRequest(c, "invalid sequence")
	}

	var payload dto.GradeAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	submission, err := h.service.GradeAttempt(requestContext(c), id, sequence, actorFromContext(c), payload)
	if err != nil {
		return writeError(c, *logger, err)
	}

	return utils.SendSuccess(c, "attempt graded", submission)
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEMultipartForm)
}

func formUint(form *multipart.Form, key string) (uint, error) {
	values := form.Value[key]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return 0, errors.New("missing " + key)
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(values[0]), 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}
