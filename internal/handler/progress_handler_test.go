package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/models"
)

func TestProgressViewAndLessonCompletion(t *testing.T) {
	app := newTestApp(t)
	quiz := app.createAssignment(t, models.AssignmentTypeQuiz, "a")
	course := app.createCourse(t,
		[]models.ChapterContent{lessonItem(100), assignmentItem(quiz.ID)},
		[]models.ChapterContent{lessonItem(200)},
	)
	progressPath := fmt.Sprintf("/api/v2/courses/%d/progress", course.ID)

	resp := app.send(t, http.MethodGet, progressPath, asStudent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	seeded := decode[dto.CourseProgressResponse](t, resp)
	require.False(t, seeded.Data.CacheHit)
	require.Equal(t, 2, seeded.Data.TotalChapters)
	require.Equal(t, "Chapter 1", seeded.Data.Chapters[0].Title)
	for _, chapter := range seeded.Data.Chapters {
		require.Equal(t, models.ProgressNotStarted, chapter.Status)
	}

	resp = app.send(t, http.MethodGet, progressPath, asStudent, nil)
	require.True(t, decode[dto.CourseProgressResponse](t, resp).Data.CacheHit)

	resp = app.send(t, http.MethodPost, fmt.Sprintf("/api/v2/courses/%d/lessons/100/complete", course.ID), asStudent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	lesson := decode[dto.LessonCompletionResponse](t, resp)
	require.Equal(t, models.ProgressInProgress, lesson.Data.Chapter.Status)
	require.Equal(t, []uint{100}, lesson.Data.Chapter.LessonsCompleted)

	resp = app.send(t, http.MethodPost, fmt.Sprintf("/api/v2/courses/%d/lessons/200/complete", course.ID), asStudent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, models.ProgressCompleted, decode[dto.LessonCompletionResponse](t, resp).Data.Chapter.Status)

	resp = app.send(t, http.MethodGet, progressPath, asStudent, nil)
	view := decode[dto.CourseProgressResponse](t, resp)
	require.False(t, view.Data.CacheHit)
	require.Equal(t, 1, view.Data.CompletedChapters)
	require.Equal(t, models.ProgressInProgress, view.Data.Chapters[0].Status)
	require.Equal(t, models.ProgressCompleted, view.Data.Chapters[1].Status)

	resp = app.send(t, http.MethodPost, fmt.Sprintf("/api/v2/courses/%d/lessons/999/complete", course.ID), asStudent, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProgressAccessRules(t *testing.T) {
	app := newTestApp(t)
	course := app.createCourse(t, []models.ChapterContent{lessonItem(1)})
	progressPath := fmt.Sprintf("/api/v2/courses/%d/progress", course.ID)

	resp := app.send(t, http.MethodGet, progressPath+"?student_id=77", asStudent, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = app.send(t, http.MethodGet, progressPath+"?student_id=77", asInstructor, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(77), decode[dto.CourseProgressResponse](t, resp).Data.StudentID)

	resp = app.send(t, http.MethodGet, "/api/v2/courses/999/progress", asStudent, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = app.send(t, http.MethodGet, "/api/v2/courses/0/progress", asStudent, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = app.send(t, http.MethodGet, progressPath, caller{}, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
