package dto

// AddAssignmentRequest attaches a new assignment to a chapter of a course.
type AddAssignmentRequest struct {
	ChapterNumber   int      `json:"chapter_number" validate:"required,gte=1"`
	Title           string   `json:"title" validate:"required,min=3,max=255"`
	Description     string   `json:"description" validate:"omitempty,max=10000"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=0,lte=1440"`
	Type            string   `json:"type" validate:"required,oneof=quiz fill plaintext file-upload"`
	Answers         []string `json:"answers" validate:"omitempty,max=200,dive,max=1000"`
}

// AddAssignmentResponse reports where the assignment was placed.
type AddAssignmentResponse struct {
	Assignment             AssignmentResponse `json:"assignment"`
	CourseID               uint               `json:"course_id"`
	ChapterOrder           int                `json:"chapter_order"`
	ChapterCreated         bool               `json:"chapter_created"`
	ContentOrder           int                `json:"content_order"`
	ProgressEntriesUpdated int                `json:"progress_entries_updated"`
}
