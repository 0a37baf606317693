package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// AssignmentType is the closed set of assignment kinds the platform understands.
type AssignmentType string

const (
	// AssignmentTypeQuiz is a multiple-choice quiz scored against an answer key.
	AssignmentTypeQuiz AssignmentType = "quiz"
	// AssignmentTypeFill is a fill-in-the-blank exercise scored against an answer key.
	AssignmentTypeFill AssignmentType = "fill"
	// AssignmentTypePlaintext is a free-text answer graded by an instructor.
	AssignmentTypePlaintext AssignmentType = "plaintext"
	// AssignmentTypeFileUpload is a binary upload graded by an instructor.
	AssignmentTypeFileUpload AssignmentType = "file-upload"
)

// AssignmentTypes lists every supported assignment type.
var AssignmentTypes = []AssignmentType{
	AssignmentTypeQuiz,
	AssignmentTypeFill,
	AssignmentTypePlaintext,
	AssignmentTypeFileUpload,
}

// ParseAssignmentType normalises raw input into a known assignment type.
func ParseAssignmentType(raw string) (AssignmentType, error) {
	candidate := AssignmentType(strings.ToLower(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("unknown assignment type %q", raw)
	}
	return candidate, nil
}

// Valid reports whether the type is one of the supported kinds.
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentTypeQuiz, AssignmentTypeFill, AssignmentTypePlaintext, AssignmentTypeFileUpload:
		return true
	default:
		return false
	}
}

// AutoScored reports whether attempts are scored against the answer key on submit.
func (t AssignmentType) AutoScored() bool {
	switch t {
	case AssignmentTypeQuiz, AssignmentTypeFill:
		return true
	case AssignmentTypePlaintext, AssignmentTypeFileUpload:
		return false
	default:
		return false
	}
}

// Assignment is a gradable unit of coursework referenced from a chapter.
type Assignment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	DurationMinutes int            `json:"duration_minutes"`
	Type            AssignmentType `gorm:"size:32;not null;index" json:"type"`
	AnswerKeyID     *uint          `json:"answer_key_id"`
	AnswerKey       *AnswerKey     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// AnswerKey holds the authoritative answers of an assignment, kept apart from its display metadata.
type AnswerKey struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Answers   datatypes.JSONSlice[string] `gorm:"type:json" json:"answers"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}
