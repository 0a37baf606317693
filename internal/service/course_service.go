package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
	"github.com/noah-isme/gema-courseware-api/pkg/events"
)

// Actor identifies the authenticated caller.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), "admin")
}

// CourseService covers the authoring operations that reshape progress.
type CourseService interface {
	AddAssignment(ctx context.Context, courseID uint, actor Actor, req dto.AddAssignmentRequest) (dto.AddAssignmentResponse, error)
}

type courseService struct {
	tx          repository.Transactor
	courses     repository.CourseRepository
	assignments repository.AssignmentRepository
	answerKeys  repository.AnswerKeyRepository
	progress    repository.ProgressRepository
	cache       *redis.Client
	events      EventPublisher
	audit       AuditTrail
	validator   *validator.Validate
	retries     int
	logger      zerolog.Logger
}

// NewCourseService builds the authoring service.
func NewCourseService(tx repository.Transactor, courses repository.CourseRepository, assignments repository.AssignmentRepository, answerKeys repository.AnswerKeyRepository, progress repository.ProgressRepository, cache *redis.Client, publisher EventPublisher, audit AuditTrail, validate *validator.Validate, retries int, logger zerolog.Logger) CourseService {
	if retries <= 0 {
		retries = defaultConflictRetries
	}
	return &courseService{
		tx:          tx,
		courses:     courses,
		assignments: assignments,
		answerKeys:  answerKeys,
		progress:    progress,
		cache:       cache,
		events:      publisher,
		audit:       audit,
		validator:   validate,
		retries:     retries,
		logger:      logger.With().Str("component", "course_service").Logger(),
	}
}

// AddAssignment creates an assignment and appends it to a chapter. A missing chapter is
// created when it directly follows the last one, and every progress ledger of the course
// gains a slot for it. Completed slots of an extended chapter are moved back to in-progress.
func (s *courseService) AddAssignment(ctx context.Context, courseID uint, actor Actor, req dto.AddAssignmentRequest) (dto.AddAssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AddAssignmentResponse{}, err
	}

	kind, err := models.ParseAssignmentType(req.Type)
	if err != nil {
		return dto.AddAssignmentResponse{}, fmt.Errorf("%w: %v", ErrInvalidAssignment, err)
	}

	answers := normalizeAnswers(req.Answers)
	if kind.AutoScored() && len(answers) == 0 {
		return dto.AddAssignmentResponse{}, fmt.Errorf("%w: %s assignments need an answer key", ErrInvalidAssignment, kind)
	}

	var (
		response dto.AddAssignmentResponse
		touched  []uint
	)
	err = retryOnConflict(ctx, s.retries, s.logger, func(ctx context.Context) error {
		touched = touched[:0]
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			course, err := s.courses.GetWithChapters(ctx, courseID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrCourseNotFound
				}
				return err
			}

			if !actor.IsAdmin() && course.InstructorID != actor.ID {
				return ErrForbidden
			}
			if err := s.courses.BumpVersion(ctx, &course); err != nil {
				return err
			}

			chapter, exists := course.ChapterByOrder(req.ChapterNumber)
			if !exists {
				if !course.CanAppendChapter(req.ChapterNumber) {
					return ErrChapterNotFound
				}
				chapter = models.Chapter{
					CourseID: course.ID,
					Title:    models.DefaultChapterTitle(req.ChapterNumber),
					Order:    req.ChapterNumber,
				}
				if err := s.courses.CreateChapter(ctx, &chapter); err != nil {
					return err
				}
			}

			assignment := models.Assignment{
				Title:           strings.TrimSpace(req.Title),
				Description:     strings.TrimSpace(req.Description),
				DurationMinutes: req.DurationMinutes,
				Type:            kind,
			}
			if kind.AutoScored() {
				key := models.AnswerKey{Answers: datatypes.JSONSlice[string](answers)}
				if err := s.answerKeys.Create(ctx, &key); err != nil {
					return err
				}
				assignment.AnswerKeyID = &key.ID
			}
			if err := s.assignments.Create(ctx, &assignment); err != nil {
				return err
			}

			assignmentID := assignment.ID
			content := models.ChapterContent{
				ChapterID:    chapter.ID,
				ContentType:  models.ContentTypeAssignment,
				AssignmentID: &assignmentID,
				Order:        chapter.NextContentOrder(),
			}
			if err := s.courses.AppendContent(ctx, &content); err != nil {
				return err
			}
			chapter.Content = append(chapter.Content, content)

			entries, err := s.progress.ListByCourse(ctx, course.ID)
			if err != nil {
				return err
			}
			for i := range entries {
				entry := &entries[i]
				var changed bool
				if exists {
					changed = entry.DemoteChapter(chapter.Order, chapter)
				} else {
					changed = entry.AppendChapterSlot(chapter.Order) > 0
				}
				if !changed {
					continue
				}
				if err := s.progress.Update(ctx, entry); err != nil {
					return err
				}
				touched = append(touched, entry.StudentID)
			}

			if err := recordAudit(ctx, s.audit, AuditEntry{
				Actor:      actor,
				Action:     events.AssignmentAdded,
				EntityType: "assignment",
				EntityID:   assignment.ID,
				Metadata: map[string]interface{}{
					"course_id":       course.ID,
					"chapter_order":   chapter.Order,
					"chapter_created": !exists,
				},
			}); err != nil {
				return err
			}

			if kind.AutoScored() {
				assignment.AnswerKey = &models.AnswerKey{Answers: datatypes.JSONSlice[string](answers)}
			}
			response = dto.AddAssignmentResponse{
				Assignment:             dto.NewAssignmentResponseWithAnswers(assignment),
				CourseID:               course.ID,
				ChapterOrder:           chapter.Order,
				ChapterCreated:         !exists,
				ContentOrder:           content.Order,
				ProgressEntriesUpdated: len(touched),
			}
			return nil
		})
	})
	if err != nil {
		return dto.AddAssignmentResponse{}, err
	}

	invalidateProgressCache(ctx, s.cache, s.logger, courseID, touched...)
	publishEvent(ctx, s.events, s.logger, events.AssignmentAdded, assignmentAddedEvent{
		CourseID:       courseID,
		AssignmentID:   response.Assignment.ID,
		ChapterOrder:   response.ChapterOrder,
		ChapterCreated: response.ChapterCreated,
	})

	s.logger.Info().
		Uint("course_id", courseID).
		Uint("assignment_id", response.Assignment.ID).
		Int("chapter_order", response.ChapterOrder).
		Bool("chapter_created", response.ChapterCreated).
		Int("progress_entries_updated", response.ProgressEntriesUpdated).
		Msg("assignment added to course")

	return response, nil
}

// loadCourseStructure reads the course inside the caller's transaction while holding a share
// lock on it, so the structure cannot change before the transaction commits.
func loadCourseStructure(ctx context.Context, courses repository.CourseRepository, courseID uint) (models.Course, error) {
	version, err := courses.LockStructure(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}

	course, err := courses.GetWithChapters(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	if course.Version != version {
		return models.Course{}, repository.ErrVersionConflict
	}
	return course, nil
}

func normalizeAnswers(raw []string) []string {
	answers := make([]string, 0, len(raw))
	for _, answer := range raw {
		answers = append(answers, strings.TrimSpace(answer))
	}
	for len(answers) > 0 && answers[len(answers)-1] == "" {
		answers = answers[:len(answers)-1]
	}
	return answers
}
