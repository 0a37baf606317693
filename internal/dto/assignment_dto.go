package dto

import (
	"time"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

// AssignmentListRequest captures search, filter and paging options.
type AssignmentListRequest struct {
	Search   string `query:"search" validate:"omitempty,max=255"`
	Type     string `query:"type" validate:"omitempty,oneof=quiz fill plaintext file-upload"`
	Sort     string `query:"sort" validate:"omitempty,max=32"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// AssignmentResponse is the serialized representation returned to API clients.
// Answers are only populated for instructors and admins.
type AssignmentResponse struct {
	ID              uint                  `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	DurationMinutes int                   `json:"duration_minutes"`
	Type            models.AssignmentType `json:"type"`
	AutoScored      bool                  `json:"auto_scored"`
	Answers         []string              `json:"answers,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// AssignmentListResponse wraps a page of assignments.
type AssignmentListResponse struct {
	Items      []AssignmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAssignmentResponse converts a model into a DTO without answers.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:              model.ID,
		Title:           model.Title,
		Description:     model.Description,
		DurationMinutes: model.DurationMinutes,
		Type:            model.Type,
		AutoScored:      model.Type.AutoScored(),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewAssignmentResponseWithAnswers includes the answer key when it was loaded.
func NewAssignmentResponseWithAnswers(model models.Assignment) AssignmentResponse {
	response := NewAssignmentResponse(model)
	if model.AnswerKey != nil {
		response.Answers = append([]string{}, model.AnswerKey.Answers...)
	}
	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
