package dto

import (
	"time"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

// ChapterProgressResponse is one chapter slot of a progress view.
type ChapterProgressResponse struct {
	ChapterOrder         int                   `json:"chapter_order"`
	Title                string                `json:"title,omitempty"`
	LessonsCompleted     []uint                `json:"lessons_completed"`
	AssignmentsCompleted []uint                `json:"assignments_completed"`
	Status               models.ProgressStatus `json:"status"`
}

// CourseProgressResponse is the progress view of one student in one course.
type CourseProgressResponse struct {
	StudentID         uint                      `json:"student_id"`
	CourseID          uint                      `json:"course_id"`
	Chapters          []ChapterProgressResponse `json:"progress"`
	CompletedChapters int                       `json:"completed_chapters"`
	TotalChapters     int                       `json:"total_chapters"`
	Version           uint                      `json:"version"`
	UpdatedAt         *time.Time                `json:"updated_at,omitempty"`
	CacheHit          bool                      `json:"cache_hit"`
}

// LessonCompletionResponse reports the slot touched by a lesson completion.
type LessonCompletionResponse struct {
	CourseID     uint                    `json:"course_id"`
	LessonID     uint                    `json:"lesson_id"`
	Chapter      ChapterProgressResponse `json:"chapter"`
	ChapterAdded bool                    `json:"chapter_added"`
}

// NewChapterProgressResponse converts a slot into its DTO.
func NewChapterProgressResponse(slot models.ChapterProgress, title string) ChapterProgressResponse {
	lessons := append([]uint{}, slot.LessonsCompleted...)
	assignments := append([]uint{}, slot.AssignmentsCompleted...)
	return ChapterProgressResponse{
		ChapterOrder:         slot.ChapterOrder,
		Title:                title,
		LessonsCompleted:     lessons,
		AssignmentsCompleted: assignments,
		Status:               slot.Status,
	}
}

// NewCourseProgressResponse converts a ledger into its DTO, labelling chapters from the course.
func NewCourseProgressResponse(progress models.CourseProgress, course models.Course) CourseProgressResponse {
	titles := make(map[int]string, len(course.Chapters))
	for _, chapter := range course.Chapters {
		titles[chapter.Order] = chapter.Title
	}

	response := CourseProgressResponse{
		StudentID:     progress.StudentID,
		CourseID:      progress.CourseID,
		Chapters:      make([]ChapterProgressResponse, 0, len(progress.Chapters)),
		TotalChapters: len(progress.Chapters),
		Version:       progress.Version,
	}
	if !progress.UpdatedAt.IsZero() {
		updated := progress.UpdatedAt
		response.UpdatedAt = &updated
	}

	for _, slot := range progress.Chapters {
		if slot.Status == models.ProgressCompleted {
			response.CompletedChapters++
		}
		response.Chapters = append(response.Chapters, NewChapterProgressResponse(slot, titles[slot.ChapterOrder]))
	}

	return response
}
