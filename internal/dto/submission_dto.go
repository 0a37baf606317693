package dto

import (
	"time"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

// SubmitRequest is the payload of a submission. The student is taken from the auth context.
type SubmitRequest struct {
	AssignmentID uint     `json:"assignment_id" form:"assignment_id" validate:"required,gt=0"`
	CourseID     uint     `json:"course_id" form:"course_id" validate:"required,gt=0"`
	StudentID    uint     `json:"-" form:"-" validate:"required,gt=0"`
	Content      []string `json:"content" form:"content" validate:"omitempty,max=200,dive,max=20000"`
}

// GradeAttemptRequest scores an instructor-graded attempt.
type GradeAttemptRequest struct {
	Score    *float64 `json:"score" validate:"required,gte=0,lte=10"`
	Feedback string   `json:"feedback" validate:"omitempty,max=5000"`
}

// AttemptResponse is one entry of a submission history.
type AttemptResponse struct {
	Sequence    int        `json:"sequence"`
	Content     []string   `json:"content,omitempty"`
	FileURL     string     `json:"file_url,omitempty"`
	Score       *float64   `json:"score"`
	Feedback    string     `json:"feedback,omitempty"`
	GradedBy    *uint      `json:"graded_by,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint              `json:"id"`
	AssignmentID uint              `json:"assignment_id"`
	StudentID    uint              `json:"student_id"`
	SubmitCount  int               `json:"submit_count"`
	HighestScore *float64          `json:"highest_score"`
	Attempts     []AttemptResponse `json:"submission_detail"`
	Version      uint              `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// SubmitResult reports the outcome of a submission.
type SubmitResult struct {
	Submission    SubmissionResponse    `json:"submission"`
	Created       bool                  `json:"created"`
	Score         *float64              `json:"score"`
	Passed        bool                  `json:"passed"`
	ChapterOrder  int                   `json:"chapter_order"`
	ChapterStatus models.ProgressStatus `json:"chapter_status,omitempty"`
}

// NewSubmissionResponse converts a ledger into its DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	attempts := make([]AttemptResponse, 0, len(model.Attempts))
	for _, attempt := range model.Attempts {
		attempts = append(attempts, AttemptResponse{
			Sequence:    attempt.Sequence,
			Content:     attempt.Content,
			FileURL:     attempt.FileURL,
			Score:       attempt.Score,
			Feedback:    attempt.Feedback,
			GradedBy:    attempt.GradedBy,
			GradedAt:    attempt.GradedAt,
			SubmittedAt: attempt.SubmittedAt,
		})
	}

	return SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		SubmitCount:  model.SubmitCount,
		HighestScore: model.HighestScore,
		Attempts:     attempts,
		Version:      model.Version,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}
