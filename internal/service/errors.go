package service

import "errors"

var (
	// ErrInvalidSubmission indicates the payload does not fit the assignment type.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrInvalidAssignment indicates an assignment definition that cannot be stored.
	ErrInvalidAssignment = errors.New("invalid assignment")
	// ErrAttemptLimitExceeded indicates the student has used every allowed attempt.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrAttemptNotGradable indicates the attempt is scored automatically.
	ErrAttemptNotGradable = errors.New("attempt is scored automatically")
	// ErrAssignmentNotInCourse indicates no chapter of the course references the assignment.
	ErrAssignmentNotInCourse = errors.New("assignment is not part of the course")
	// ErrLessonNotInCourse indicates no chapter of the course references the lesson.
	ErrLessonNotInCourse = errors.New("lesson is not part of the course")
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrCourseNotFound indicates the requested course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrChapterNotFound indicates the chapter does not exist and cannot be appended.
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAttemptNotFound indicates the submission has no attempt with that sequence.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrConcurrencyConflict indicates concurrent writers kept winning after every retry.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	// ErrStorageUnavailable indicates the object store rejected or timed out an upload.
	ErrStorageUnavailable = errors.New("object storage unavailable")
	// ErrForbidden indicates the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadScanFailed indicates validation of the file failed.
	ErrUploadScanFailed = errors.New("file scanning failed")
)
