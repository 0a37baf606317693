package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// DefaultMaxAttempts is the attempt ceiling used when none is configured.
const DefaultMaxAttempts = 10

var (
	// ErrAttemptLimitReached indicates the submission already holds the maximum number of attempts.
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	// ErrAttemptNotFound indicates no attempt carries the requested sequence number.
	ErrAttemptNotFound = errors.New("attempt not found")
)

// Attempt is one entry of a submission's history.
type Attempt struct {
	Sequence    int        `json:"sequence"`
	Content     []string   `json:"content,omitempty"`
	FileURL     string     `json:"file_url,omitempty"`
	Score       *float64   `json:"score"`
	Feedback    string     `json:"feedback,omitempty"`
	GradedBy    *uint      `json:"graded_by,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// Submission is the attempt ledger of one student on one assignment.
// Version is bumped on every persisted change and guards concurrent writers.
type Submission struct {
	ID           uint                         `gorm:"primaryKey" json:"id"`
	AssignmentID uint                         `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignment_id"`
	StudentID    uint                         `gorm:"not null;uniqueIndex:idx_submission_assignment_student;index" json:"student_id"`
	SubmitCount  int                          `gorm:"not null;default:0" json:"submit_count"`
	HighestScore *float64                     `json:"highest_score"`
	Attempts     datatypes.JSONSlice[Attempt] `gorm:"type:json" json:"submission_detail"`
	Version      uint                         `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
}

// IsNew reports whether the submission has not been persisted yet.
func (s Submission) IsNew() bool {
	return s.ID == 0
}

// CanAttempt reports whether another attempt fits under the ceiling.
func (s Submission) CanAttempt(maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return s.SubmitCount < maxAttempts
}

// RecordAttempt appends an attempt, bumps the counter and raises the best score.
// The submission is left untouched when the ceiling is already reached.
func (s *Submission) RecordAttempt(attempt Attempt, maxAttempts int) error {
	if !s.CanAttempt(maxAttempts) {
		return ErrAttemptLimitReached
	}

	attempt.Sequence = s.SubmitCount + 1
	s.Attempts = append(s.Attempts, attempt)
	s.SubmitCount++

	if attempt.Score != nil && (s.HighestScore == nil || *attempt.Score > *s.HighestScore) {
		best := *attempt.Score
		s.HighestScore = &best
	}

	return nil
}

// LatestAttempt returns the most recent attempt, if any.
func (s Submission) LatestAttempt() (Attempt, bool) {
	if len(s.Attempts) == 0 {
		return Attempt{}, false
	}
	return s.Attempts[len(s.Attempts)-1], true
}

// GradeAttempt stores an instructor score on an attempt and refreshes the best score.
func (s *Submission) GradeAttempt(sequence int, score float64, feedback string, graderID uint, at time.Time) error {
	for i := range s.Attempts {
		if s.Attempts[i].Sequence != sequence {
			continue
		}

		value := score
		grader := graderID
		gradedAt := at
		s.Attempts[i].Score = &value
		s.Attempts[i].Feedback = feedback
		s.Attempts[i].GradedBy = &grader
		s.Attempts[i].GradedAt = &gradedAt
		s.refreshHighestScore()
		return nil
	}

	return ErrAttemptNotFound
}

func (s *Submission) refreshHighestScore() {
	var best *float64
	for _, attempt := range s.Attempts {
		if attempt.Score == nil {
			continue
		}
		if best == nil || *attempt.Score > *best {
			value := *attempt.Score
			best = &value
		}
	}
	s.HighestScore = best
}
