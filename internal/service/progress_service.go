package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/internal/observability"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
	"github.com/noah-isme/gema-courseware-api/pkg/events"
)

// ProgressService exposes the per-student progress ledger.
type ProgressService interface {
	Get(ctx context.Context, courseID, studentID uint) (dto.CourseProgressResponse, error)
	CompleteLesson(ctx context.Context, courseID, lessonID, studentID uint) (dto.LessonCompletionResponse, error)
}

type progressService struct {
	tx       repository.Transactor
	progress repository.ProgressRepository
	courses  repository.CourseRepository
	cache    *redis.Client
	events   EventPublisher
	ttl      time.Duration
	retries  int
	logger   zerolog.Logger
}

// NewProgressService builds the progress service.
func NewProgressService(tx repository.Transactor, progress repository.ProgressRepository, courses repository.CourseRepository, cache *redis.Client, publisher EventPublisher, ttl time.Duration, retries int, logger zerolog.Logger) ProgressService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if retries <= 0 {
		retries = defaultConflictRetries
	}
	return &progressService{
		tx:       tx,
		progress: progress,
		courses:  courses,
		cache:    cache,
		events:   publisher,
		ttl:      ttl,
		retries:  retries,
		logger:   logger.With().Str("component", "progress_service").Logger(),
	}
}

// Get returns the progress view reconciled with the current course structure. The
// reconciled view is not written back; the next write persists it.
func (s *progressService) Get(ctx context.Context, courseID, studentID uint) (dto.CourseProgressResponse, error) {
	var generation string
	cacheUsable := s.cache != nil
	if cacheUsable {
		if cached, err := s.cache.Get(ctx, progressCacheKey(courseID, studentID)).Result(); err == nil && cached != "" {
			var response dto.CourseProgressResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				observability.ProgressCacheRequests().WithLabelValues("hit").Inc()
				return response, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}

		var err error
		if generation, err = progressGeneration(ctx, s.cache, courseID, studentID); err != nil {
			s.logger.Warn().Err(err).Msg("failed to read progress cache generation")
			cacheUsable = false
		}
	}

	course, err := s.courses.GetWithChapters(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseProgressResponse{}, ErrCourseNotFound
		}
		return dto.CourseProgressResponse{}, err
	}

	progress, err := s.progress.Find(ctx, studentID, courseID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		progress = models.NewCourseProgress(studentID, course)
	case err != nil:
		return dto.CourseProgressResponse{}, err
	}

	if progress.Reconcile(course) {
		s.logger.Debug().Uint("course_id", courseID).Uint("student_id", studentID).Msg("progress view reconciled with course structure")
	}

	response := dto.NewCourseProgressResponse(progress, course)

	if cacheUsable {
		if payload, err := json.Marshal(response); err == nil {
			err := storeProgressView(ctx, s.cache, courseID, studentID, generation, payload, s.ttl)
			switch {
			case errors.Is(err, errStaleProgressView):
				s.logger.Debug().Uint("course_id", courseID).Uint("student_id", studentID).Msg("progress changed while loading, view not cached")
			case err != nil:
				s.logger.Warn().Err(err).Msg("failed to write progress cache")
			}
		}
	}

	observability.ProgressCacheRequests().WithLabelValues("miss").Inc()
	return response, nil
}

func (s *progressService) CompleteLesson(ctx context.Context, courseID, lessonID, studentID uint) (dto.LessonCompletionResponse, error) {
	var (
		chapter   models.Chapter
		slot      models.ChapterProgress
		added     bool
		completed bool
	)
	err := retryOnConflict(ctx, s.retries, s.logger, func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			course, err := loadCourseStructure(ctx, s.courses, courseID)
			if err != nil {
				return err
			}
			order, ok := course.LocateLesson(lessonID)
			if !ok {
				return ErrLessonNotInCourse
			}
			chapter, _ = course.ChapterByOrder(order)

			progress, err := s.progress.Find(ctx, studentID, courseID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				progress = models.NewCourseProgress(studentID, course)
			case err != nil:
				return err
			}

			added = progress.EnsureChapterSlot(order) > 0
			before, _ := progress.Slot(order)
			status, err := progress.MarkLessonCompleted(order, lessonID, chapter)
			if err != nil {
				return err
			}

			if progress.IsNew() {
				err = s.progress.Create(ctx, &progress)
			} else {
				err = s.progress.Update(ctx, &progress)
			}
			if err != nil {
				return err
			}

			slot, _ = progress.Slot(order)
			completed = before.Status != models.ProgressCompleted && status == models.ProgressCompleted
			return nil
		})
	})
	if err != nil {
		return dto.LessonCompletionResponse{}, err
	}

	invalidateProgressCache(ctx, s.cache, s.logger, courseID, studentID)
	if completed {
		observability.ChapterCompletions().Inc()
		publishEvent(ctx, s.events, s.logger, events.ChapterCompleted, chapterCompletedEvent{
			CourseID:     courseID,
			StudentID:    studentID,
			ChapterOrder: chapter.Order,
		})
	}

	return dto.LessonCompletionResponse{
		CourseID:     courseID,
		LessonID:     lessonID,
		Chapter:      dto.NewChapterProgressResponse(slot, chapter.Title),
		ChapterAdded: added,
	}, nil
}
