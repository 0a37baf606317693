package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// Stable error codes returned in the response envelope.
const (
	CodeValidation            = "validation_error"
	CodeAttemptLimitExceeded  = "attempt_limit_exceeded"
	CodeAssignmentNotInCourse = "assignment_not_in_course"
	CodeNotFound              = "not_found"
	CodeConcurrencyConflict   = "concurrency_conflict"
	CodeForbidden             = "forbidden"
	CodeUnauthorized          = "unauthorized"
	CodeStorage               = "storage_error"
	CodeInternal              = "internal_error"
)

var (
	errUnauthenticated  = errors.New("authenticated user required")
	errInvalidStudentID = errors.New("invalid student_id")
)

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendErrorCode(c, fiber.StatusBadRequest, CodeValidation, message)
}

// writeError maps service errors onto HTTP statuses and codes.
func writeError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return badRequest(c, validationErrors.Error())
	case errors.Is(err, errInvalidStudentID):
		return badRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, service.ErrInvalidAssignment),
		errors.Is(err, service.ErrAttemptNotGradable),
		errors.Is(err, service.ErrUploadTooLarge),
		errors.Is(err, service.ErrUploadTypeNotAllowed),
		errors.Is(err, service.ErrUploadScanFailed):
		return badRequest(c, err.Error())
	case errors.Is(err, service.ErrAttemptLimitExceeded):
		return utils.SendErrorCode(c, fiber.StatusBadRequest, CodeAttemptLimitExceeded, err.Error())
	case errors.Is(err, service.ErrAssignmentNotInCourse):
		return utils.SendErrorCode(c, fiber.StatusUnprocessableEntity, CodeAssignmentNotInCourse, err.Error())
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrChapterNotFound),
		errors.Is(err, service.ErrLessonNotInCourse):
		return utils.SendErrorCode(c, fiber.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, service.ErrConcurrencyConflict):
		logger.Warn().Err(err).Msg("request lost to concurrent writers")
		return utils.SendErrorCode(c, fiber.StatusConflict, CodeConcurrencyConflict, "the record was modified concurrently, please retry")
	case errors.Is(err, service.ErrForbidden):
		return utils.SendErrorCode(c, fiber.StatusForbidden, CodeForbidden, "insufficient permissions")
	case errors.Is(err, errUnauthenticated):
		return utils.SendErrorCode(c, fiber.StatusUnauthorized, CodeUnauthorized, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		logger.Error().Err(err).Msg("object storage failure")
		return utils.SendErrorCode(c, fiber.StatusBadGateway, CodeStorage, "file storage is unavailable")
	default:
		logger.Error().Err(err).Msg("internal server error")
		return utils.SendErrorCode(c, fiber.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
