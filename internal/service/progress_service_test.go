package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/pkg/events"
)

func TestProgressGetSeedsViewAndCaches(t *testing.T) {
	f := newFixture(t)
	quiz := f.createAssignment(t, models.AssignmentTypeQuiz, "a")
	course := f.createCourse(t, 7, []models.ChapterContent{lessonItem(1)}, []models.ChapterContent{assignmentItem(quiz.ID)})
	svc := f.progressService()
	ctx := context.Background()

	view, err := svc.Get(ctx, course.ID, studentID)
	require.NoError(t, err)
	require.False(t, view.CacheHit)
	require.Equal(t, 2, view.TotalChapters)
	require.Zero(t, view.CompletedChapters)
	require.Equal(t, "Chapter 2", view.Chapters[1].Title)
	for i, slot := range view.Chapters {
		require.Equal(t, i+1, slot.ChapterOrder)
		require.Equal(t, models.ProgressNotStarted, slot.Status)
	}
	requireNoProgress(t, f, studentID, course.ID)

	cached, err := svc.Get(ctx, course.ID, studentID)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, view.Chapters, cached.Chapters)

	_, err = svc.Get(ctx, 999, studentID)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestProgressGetReconcilesExternalCourseEdits(t *testing.T) {
	f := newFixture(t)
	quiz := f.createAssignment(t, models.AssignmentTypeQuiz, "a")
	course := f.createCourse(t, 7, []models.ChapterContent{assignmentItem(quiz.ID)})
	ctx := context.Background()

	_, err := f.submissionService().Submit(ctx, dto.SubmitRequest{
		AssignmentID: quiz.ID,
		CourseID:     course.ID,
		StudentID:    studentID,
		Content:      []string{"a"},
	}, nil, nil)
	require.NoError(t, err)

	lesson := uint(77)
	require.NoError(t, f.courses.AppendContent(ctx, &models.ChapterContent{
		ChapterID:   course.Chapters[0].ID,
		ContentType: models.ContentTypeLesson,
		LessonID:    &lesson,
		Order:       2,
	}))
	require.NoError(t, f.courses.CreateChapter(ctx, &models.Chapter{CourseID: course.ID, Title: "Appendix", Order: 2}))

	view, err := f.progressService().Get(ctx, course.ID, studentID)
	require.NoError(t, err)
	require.Len(t, view.Chapters, 2)
	require.Equal(t, models.ProgressInProgress, view.Chapters[0].Status)
	require.Equal(t, models.ProgressNotStarted, view.Chapters[1].Status)
	require.Equal(t, "Appendix", view.Chapters[1].Title)

	stored, err := f.progress.Find(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Len(t, stored.Chapters, 1)
	require.Equal(t, models.ProgressCompleted, stored.Chapters[0].Status)
}

func TestCompleteLessonAdvancesChapter(t *testing.T) {
	f := newFixture(t)
	quiz := f.createAssignment(t, models.AssignmentTypeQuiz, "a")
	course := f.createCourse(t, 7, []models.ChapterContent{lessonItem(501), assignmentItem(quiz.ID)})
	svc := f.progressService()
	ctx := context.Background()

	first, err := svc.CompleteLesson(ctx, course.ID, 501, studentID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressInProgress, first.Chapter.Status)
	require.Equal(t, []uint{501}, first.Chapter.LessonsCompleted)

	again, err := svc.CompleteLesson(ctx, course.ID, 501, studentID)
	require.NoError(t, err)
	require.Equal(t, []uint{501}, again.Chapter.LessonsCompleted)

	result, err := f.submissionService().Submit(ctx, dto.SubmitRequest{
		AssignmentID: quiz.ID,
		CourseID:     course.ID,
		StudentID:    studentID,
		Content:      []string{"a"},
	}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, models.ProgressCompleted, result.ChapterStatus)

	stored, err := f.progress.Find(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, uint(3), stored.Version)
	require.Contains(t, f.events.types(), events.ChapterCompleted)

	_, err = svc.CompleteLesson(ctx, course.ID, 404, studentID)
	require.ErrorIs(t, err, ErrLessonNotInCourse)

	_, err = svc.CompleteLesson(ctx, 999, 501, studentID)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCompleteLessonJudgesCompletionAgainstCommittedChapter(t *testing.T) {
	f := newFixture(t)
	course := f.createCourse(t, 7, []models.ChapterContent{lessonItem(501)})
	ctx := context.Background()

	_, err := f.courseService().AddAssignment(ctx, course.ID, Actor{ID: 7, Role: "instructor"}, dto.AddAssignmentRequest{
		ChapterNumber: 1,
		Title:         "Reflection",
		Type:          "plaintext",
	})
	require.NoError(t, err)

	courses := &staleCourses{CourseRepository: f.courses, snapshot: course, remaining: 1}
	svc := NewProgressService(f.tx, f.progress, courses, f.cache, f.events, 0, 0, testLogger())

	result, err := svc.CompleteLesson(ctx, course.ID, 501, studentID)
	require.NoError(t, err)
	require.Zero(t, courses.left())
	require.Equal(t, models.ProgressInProgress, result.Chapter.Status)

	stored, err := f.progress.Find(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressInProgress, stored.Chapters[0].Status)
	require.NotContains(t, f.events.types(), events.ChapterCompleted)
}

func TestProgressGetDoesNotCacheViewOverwrittenWhileLoading(t *testing.T) {
	f := newFixture(t)
	course := f.createCourse(t, 7, []models.ChapterContent{lessonItem(501), lessonItem(502)})
	ctx := context.Background()

	writer := f.progressService()
	racing := &racingProgress{ProgressRepository: f.progress, write: func() {
		_, err := writer.CompleteLesson(ctx, course.ID, 501, studentID)
		require.NoError(t, err)
	}}
	reader := NewProgressService(f.tx, racing, f.courses, f.cache, f.events, 0, 0, testLogger())

	view, err := reader.Get(ctx, course.ID, studentID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressNotStarted, view.Chapters[0].Status)
	require.False(t, f.redis.Exists(progressCacheKey(course.ID, studentID)))

	view, err = reader.Get(ctx, course.ID, studentID)
	require.NoError(t, err)
	require.False(t, view.CacheHit)
	require.Equal(t, models.ProgressInProgress, view.Chapters[0].Status)
	require.True(t, f.redis.Exists(progressCacheKey(course.ID, studentID)))

	cached, err := reader.Get(ctx, course.ID, studentID)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, models.ProgressInProgress, cached.Chapters[0].Status)
}
