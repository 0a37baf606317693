package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventPublisher emits domain events after a commit.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

type submissionRecordedEvent struct {
	SubmissionID uint     `json:"submission_id"`
	AssignmentID uint     `json:"assignment_id"`
	CourseID     uint     `json:"course_id"`
	StudentID    uint     `json:"student_id"`
	Sequence     int      `json:"sequence"`
	Score        *float64 `json:"score"`
	Created      bool     `json:"created"`
}

type submissionGradedEvent struct {
	SubmissionID uint    `json:"submission_id"`
	AssignmentID uint    `json:"assignment_id"`
	StudentID    uint    `json:"student_id"`
	Sequence     int     `json:"sequence"`
	Score        float64 `json:"score"`
	GradedBy     uint    `json:"graded_by"`
}

type chapterCompletedEvent struct {
	CourseID     uint `json:"course_id"`
	StudentID    uint `json:"student_id"`
	ChapterOrder int  `json:"chapter_order"`
}

type assignmentAddedEvent struct {
	CourseID       uint `json:"course_id"`
	AssignmentID   uint `json:"assignment_id"`
	ChapterOrder   int  `json:"chapter_order"`
	ChapterCreated bool `json:"chapter_created"`
}

// publishEvent never fails the caller: the commit already happened.
func publishEvent(ctx context.Context, publisher EventPublisher, logger zerolog.Logger, eventType string, payload interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(context.WithoutCancel(ctx), eventType, payload); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

const progressGenerationTTL = 24 * time.Hour

var errStaleProgressView = errors.New("progress view changed while loading")

func progressCacheKey(courseID, studentID uint) string {
	return fmt.Sprintf("progress:v1:course:%d:student:%d", courseID, studentID)
}

// progressGenerationKey counts writes to a ledger. Readers only cache a view when the
// counter did not move while they loaded it.
func progressGenerationKey(courseID, studentID uint) string {
	return fmt.Sprintf("progress:v1:gen:course:%d:student:%d", courseID, studentID)
}

func invalidateProgressCache(ctx context.Context, cache *redis.Client, logger zerolog.Logger, courseID uint, studentIDs ...uint) {
	if cache == nil || len(studentIDs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	_, err := cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, studentID := range studentIDs {
			generation := progressGenerationKey(courseID, studentID)
			pipe.Incr(ctx, generation)
			pipe.Expire(ctx, generation, progressGenerationTTL)
			pipe.Del(ctx, progressCacheKey(courseID, studentID))
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to invalidate progress cache")
	}
}

// progressGeneration reads the write counter of a ledger; a missing counter reads as "".
func progressGeneration(ctx context.Context, cache *redis.Client, courseID, studentID uint) (string, error) {
	generation, err := cache.Get(ctx, progressGenerationKey(courseID, studentID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return generation, nil
}

// storeProgressView caches payload unless the ledger was written after generation was read.
func storeProgressView(ctx context.Context, cache *redis.Client, courseID, studentID uint, generation string, payload []byte, ttl time.Duration) error {
	generationKey := progressGenerationKey(courseID, studentID)
	err := cache.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleProgressView
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, progressCacheKey(courseID, studentID), payload, ttl)
			return nil
		})
		return err
	}, generationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleProgressView
	}
	return err
}
