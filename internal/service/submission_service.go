package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/grading"
	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/internal/observability"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
	"github.com/noah-isme/gema-courseware-api/pkg/events"
)

// SubmissionService orchestrates submission workflows.
type SubmissionService interface {
	Submit(ctx context.Context, req dto.SubmitRequest, file *multipart.FileHeader, release func() error) (dto.SubmitResult, error)
	Get(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error)
	GradeAttempt(ctx context.Context, submissionID uint, sequence int, grader Actor, req dto.GradeAttemptRequest) (dto.SubmissionResponse, error)
}

// SubmissionDependencies groups the collaborators of the submission service.
type SubmissionDependencies struct {
	Transactor      repository.Transactor
	Submissions     repository.SubmissionRepository
	Progress        repository.ProgressRepository
	Assignments     repository.AssignmentRepository
	AnswerKeys      repository.AnswerKeyRepository
	Courses         repository.CourseRepository
	Uploads         UploadService
	Cache           *redis.Client
	Events          EventPublisher
	Audit           AuditTrail
	Validator       *validator.Validate
	MaxAttempts     int
	ConflictRetries int
}

type submissionService struct {
	tx          repository.Transactor
	submissions repository.SubmissionRepository
	progress    repository.ProgressRepository
	assignments repository.AssignmentRepository
	answerKeys  repository.AnswerKeyRepository
	courses     repository.CourseRepository
	uploads     UploadService
	cache       *redis.Client
	events      EventPublisher
	audit       AuditTrail
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	maxAttempts int
	retries     int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(deps SubmissionDependencies, logger zerolog.Logger) SubmissionService {
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}
	retries := deps.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}

	return &submissionService{
		tx:          deps.Transactor,
		submissions: deps.Submissions,
		progress:    deps.Progress,
		assignments: deps.Assignments,
		answerKeys:  deps.AnswerKeys,
		courses:     deps.Courses,
		uploads:     deps.Uploads,
		cache:       deps.Cache,
		events:      deps.Events,
		audit:       deps.Audit,
		validator:   deps.Validator,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-courseware-api/internal/service/submission"),
		maxAttempts: maxAttempts,
		retries:     retries,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

type submissionCommit struct {
	assignment models.Assignment
	courseID   uint
	studentID  uint
	attempt    models.Attempt
	advances   bool
}

type submissionOutcome struct {
	submission       models.Submission
	created          bool
	chapterOrder     int
	chapterStatus    models.ProgressStatus
	chapterCompleted bool
}

func (s *submissionService) Submit(ctx context.Context, req dto.SubmitRequest, file *multipart.FileHeader, release func() error) (dto.SubmitResult, error) {
	if release != nil {
		defer func() {
			if err := release(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to release multipart buffers")
			}
		}()
	}

	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()

	start := s.now()
	kind := "unknown"
	outcome := "error"
	defer func() {
		observability.SubmissionLatency().WithLabelValues(kind).Observe(time.Since(start).Seconds())
		observability.SubmissionAttempts().WithLabelValues(kind, outcome).Inc()
	}()

	fail := func(err error, reason string) (dto.SubmitResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return dto.SubmitResult{}, err
	}

	if err := s.validator.Struct(req); err != nil {
		outcome = "invalid"
		return fail(err, "validation failed")
	}
	span.SetAttributes(
		attribute.Int("submission.assignment_id", int(req.AssignmentID)),
		attribute.Int("submission.course_id", int(req.CourseID)),
		attribute.Int("submission.student_id", int(req.StudentID)),
	)

	assignment, err := s.assignments.GetByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(ErrAssignmentNotFound, "assignment not found")
		}
		return fail(err, "assignment lookup failed")
	}
	kind = string(assignment.Type)
	span.SetAttributes(attribute.String("submission.type", kind))

	content, err := s.prepareContent(assignment.Type, req.Content, file)
	if err != nil {
		outcome = "invalid"
		return fail(err, "validation failed")
	}

	course, err := s.courses.GetWithChapters(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(ErrCourseNotFound, "course not found")
		}
		return fail(err, "course lookup failed")
	}

	chapterOrder, ok := course.LocateAssignment(assignment.ID)
	if !ok {
		return fail(ErrAssignmentNotInCourse, "assignment not in course")
	}
	span.SetAttributes(attribute.Int("submission.chapter_order", chapterOrder))

	score, err := s.score(ctx, assignment, content)
	if err != nil {
		return fail(err, "scoring failed")
	}

	if err := s.precheckCeiling(ctx, assignment.ID, req.StudentID); err != nil {
		if errors.Is(err, ErrAttemptLimitExceeded) {
			outcome = "rejected"
		}
		return fail(err, "attempt ceiling")
	}

	attempt := models.Attempt{
		Content:     content,
		Score:       score,
		SubmittedAt: s.now().UTC(),
	}

	var stored *StoredObject
	if assignment.Type == models.AssignmentTypeFileUpload {
		object, err := s.uploads.Store(ctx, req.StudentID, assignment.ID, file)
		if err != nil {
			return fail(err, "upload failed")
		}
		stored = &object
		attempt.FileURL = object.URL
	}

	commit := submissionCommit{
		assignment: assignment,
		courseID:   course.ID,
		studentID:  req.StudentID,
		attempt:    attempt,
		advances:   advancesProgress(assignment.Type, score),
	}

	var result submissionOutcome
	err = retryOnConflict(ctx, s.retries, s.logger, func(ctx context.Context) error {
		var commitErr error
		result, commitErr = s.commit(ctx, commit)
		return commitErr
	})
	if err != nil {
		if stored != nil {
			s.uploads.Discard(ctx, stored.Key)
		}
		if errors.Is(err, models.ErrAttemptLimitReached) {
			outcome = "rejected"
			err = ErrAttemptLimitExceeded
		}
		if errors.Is(err, ErrConcurrencyConflict) {
			outcome = "conflict"
		}
		return fail(err, "commit failed")
	}

	s.afterCommit(ctx, commit, result)

	outcome = "updated"
	if result.created {
		outcome = "created"
	}
	span.SetStatus(codes.Ok, outcome)

	latest, _ := result.submission.LatestAttempt()
	s.logger.Info().
		Uint("submission_id", result.submission.ID).
		Uint("assignment_id", assignment.ID).
		Uint("student_id", req.StudentID).
		Int("sequence", latest.Sequence).
		Bool("created", result.created).
		Msg("submission recorded")

	return dto.SubmitResult{
		Submission:    dto.NewSubmissionResponse(result.submission),
		Created:       result.created,
		Score:         latest.Score,
		Passed:        grading.IsPassing(latest.Score),
		ChapterOrder:  result.chapterOrder,
		ChapterStatus: result.chapterStatus,
	}, nil
}

// prepareContent checks the payload against the assignment type.
func (s *submissionService) prepareContent(kind models.AssignmentType, content []string, file *multipart.FileHeader) ([]string, error) {
	switch kind {
	case models.AssignmentTypeQuiz, models.AssignmentTypeFill:
		if len(content) == 0 {
			return nil, fmt.Errorf("%w: answers are required", ErrInvalidSubmission)
		}
		return append([]string{}, content...), nil
	case models.AssignmentTypePlaintext:
		text := strings.TrimSpace(s.sanitizer.Sanitize(strings.Join(content, "\n")))
		if text == "" {
			return nil, fmt.Errorf("%w: text is required", ErrInvalidSubmission)
		}
		return []string{text}, nil
	case models.AssignmentTypeFileUpload:
		if file == nil {
			return nil, fmt.Errorf("%w: file is required", ErrInvalidSubmission)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported assignment type %q", ErrInvalidSubmission, kind)
	}
}

func (s *submissionService) score(ctx context.Context, assignment models.Assignment, content []string) (*float64, error) {
	if !assignment.Type.AutoScored() {
		return nil, nil
	}
	if assignment.AnswerKeyID == nil {
		return nil, fmt.Errorf("assignment %d: %w", assignment.ID, grading.ErrEmptyAnswerKey)
	}

	key, err := s.answerKeys.GetByID(ctx, *assignment.AnswerKeyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assignment %d: %w", assignment.ID, grading.ErrEmptyAnswerKey)
		}
		return nil, fmt.Errorf("load answer key: %w", err)
	}

	score, err := grading.Score(assignment.Type, content, key.Answers)
	if err != nil {
		return nil, fmt.Errorf("assignment %d: %w", assignment.ID, err)
	}
	return score, nil
}

// precheckCeiling rejects a full ledger before any upload happens.
func (s *submissionService) precheckCeiling(ctx context.Context, assignmentID, studentID uint) error {
	existing, err := s.submissions.Find(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !existing.CanAttempt(s.maxAttempts) {
		return ErrAttemptLimitExceeded
	}
	return nil
}

// commit records the attempt and advances progress in a single transaction. The course is
// re-read under a share lock on every run so completion is judged against the structure that
// is current when the transaction commits.
func (s *submissionService) commit(ctx context.Context, in submissionCommit) (submissionOutcome, error) {
	var out submissionOutcome

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		course, err := loadCourseStructure(ctx, s.courses, in.courseID)
		if err != nil {
			return err
		}
		order, ok := course.LocateAssignment(in.assignment.ID)
		if !ok {
			return ErrAssignmentNotInCourse
		}
		chapter, _ := course.ChapterByOrder(order)

		submission, err := s.submissions.Find(ctx, in.assignment.ID, in.studentID)
		created := false
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			submission = models.Submission{AssignmentID: in.assignment.ID, StudentID: in.studentID}
			created = true
		case err != nil:
			return err
		}

		if err := submission.RecordAttempt(in.attempt, s.maxAttempts); err != nil {
			return err
		}

		if created {
			err = s.submissions.Create(ctx, &submission)
		} else {
			err = s.submissions.Update(ctx, &submission)
		}
		if err != nil {
			return err
		}

		out = submissionOutcome{submission: submission, created: created, chapterOrder: order}

		status, completed, err := s.recordProgress(ctx, in, course, chapter)
		if err != nil {
			return err
		}
		out.chapterStatus = status
		out.chapterCompleted = completed
		return nil
	})

	return out, err
}

// recordProgress makes sure the student has a ledger for the course and, for attempts that
// count, marks the assignment on the chapter slot.
func (s *submissionService) recordProgress(ctx context.Context, in submissionCommit, course models.Course, chapter models.Chapter) (models.ProgressStatus, bool, error) {
	progress, err := s.progress.Find(ctx, in.studentID, course.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		progress = models.NewCourseProgress(in.studentID, course)
	case err != nil:
		return "", false, err
	}

	if !in.advances {
		if progress.IsNew() {
			return "", false, s.progress.Create(ctx, &progress)
		}
		return "", false, nil
	}

	progress.EnsureChapterSlot(chapter.Order)
	before, _ := progress.Slot(chapter.Order)

	status, err := progress.MarkAssignmentCompleted(chapter.Order, in.assignment.ID, chapter)
	if err != nil {
		return "", false, err
	}

	if progress.IsNew() {
		err = s.progress.Create(ctx, &progress)
	} else {
		err = s.progress.Update(ctx, &progress)
	}
	if err != nil {
		return "", false, err
	}

	return status, before.Status != models.ProgressCompleted && status == models.ProgressCompleted, nil
}

func (s *submissionService) afterCommit(ctx context.Context, in submissionCommit, out submissionOutcome) {
	latest, _ := out.submission.LatestAttempt()

	invalidateProgressCache(ctx, s.cache, s.logger, in.courseID, in.studentID)

	publishEvent(ctx, s.events, s.logger, events.SubmissionRecorded, submissionRecordedEvent{
		SubmissionID: out.submission.ID,
		AssignmentID: in.assignment.ID,
		CourseID:     in.courseID,
		StudentID:    in.studentID,
		Sequence:     latest.Sequence,
		Score:        latest.Score,
		Created:      out.created,
	})

	if out.chapterCompleted {
		observability.ChapterCompletions().Inc()
		publishEvent(ctx, s.events, s.logger, events.ChapterCompleted, chapterCompletedEvent{
			CourseID:     in.courseID,
			StudentID:    in.studentID,
			ChapterOrder: out.chapterOrder,
		})
	}
}

func (s *submissionService) Get(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.Find(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) GradeAttempt(ctx context.Context, submissionID uint, sequence int, grader Actor, req dto.GradeAttemptRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	var graded models.Submission
	err := retryOnConflict(ctx, s.retries, s.logger, func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			submission, err := s.submissions.GetByID(ctx, submissionID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrSubmissionNotFound
				}
				return err
			}

			assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAssignmentNotFound
				}
				return err
			}
			if assignment.Type.AutoScored() {
				return ErrAttemptNotGradable
			}
			if err := s.authorizeGrader(ctx, grader, assignment.ID); err != nil {
				return err
			}

			if err := submission.GradeAttempt(sequence, *req.Score, strings.TrimSpace(req.Feedback), grader.ID, s.now().UTC()); err != nil {
				if errors.Is(err, models.ErrAttemptNotFound) {
					return ErrAttemptNotFound
				}
				return err
			}

			if err := s.submissions.Update(ctx, &submission); err != nil {
				return err
			}
			if err := recordAudit(ctx, s.audit, AuditEntry{
				Actor:      grader,
				Action:     events.SubmissionGraded,
				EntityType: "submission",
				EntityID:   submission.ID,
				Metadata: map[string]interface{}{
					"sequence":   sequence,
					"score":      *req.Score,
					"student_id": submission.StudentID,
				},
			}); err != nil {
				return err
			}
			graded = submission
			return nil
		})
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	publishEvent(ctx, s.events, s.logger, events.SubmissionGraded, submissionGradedEvent{
		SubmissionID: graded.ID,
		AssignmentID: graded.AssignmentID,
		StudentID:    graded.StudentID,
		Sequence:     sequence,
		Score:        *req.Score,
		GradedBy:     grader.ID,
	})

	s.logger.Info().
		Uint("submission_id", graded.ID).
		Int("sequence", sequence).
		Uint("graded_by", grader.ID).
		Msg("attempt graded")

	return dto.NewSubmissionResponse(graded), nil
}

// authorizeGrader lets admins grade anything and instructors grade assignments placed in
// one of their own courses.
func (s *submissionService) authorizeGrader(ctx context.Context, grader Actor, assignmentID uint) error {
	if grader.IsAdmin() {
		return nil
	}
	courses, err := s.courses.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	for _, course := range courses {
		if course.InstructorID == grader.ID {
			return nil
		}
	}
	return ErrForbidden
}

// advancesProgress decides whether an attempt counts toward chapter completion.
func advancesProgress(kind models.AssignmentType, score *float64) bool {
	switch kind {
	case models.AssignmentTypeQuiz, models.AssignmentTypeFill:
		return grading.IsPassing(score)
	case models.AssignmentTypePlaintext, models.AssignmentTypeFileUpload:
		return true
	default:
		return false
	}
}
