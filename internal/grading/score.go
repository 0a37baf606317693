// Package grading scores auto-gradable submissions against their answer keys.
package grading

import (
	"errors"
	"strings"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

const (
	// MaxScore is the upper bound of every computed score.
	MaxScore = 10.0
	// PassingScore is the minimum score that counts an attempt towards progress.
	PassingScore = 7.0
)

// ErrEmptyAnswerKey indicates an auto-scored assignment has no answers to compare against.
var ErrEmptyAnswerKey = errors.New("answer key is empty")

// Score computes the attempt score for the assignment type. It returns nil for types
// that are graded by an instructor.
func Score(kind models.AssignmentType, submitted, answerKey []string) (*float64, error) {
	switch kind {
	case models.AssignmentTypeQuiz, models.AssignmentTypeFill:
		score, err := matchScore(submitted, answerKey)
		if err != nil {
			return nil, err
		}
		return &score, nil
	case models.AssignmentTypePlaintext, models.AssignmentTypeFileUpload:
		return nil, nil
	default:
		return nil, errors.New("unsupported assignment type: " + string(kind))
	}
}

// IsPassing reports whether a score reaches the completion threshold.
func IsPassing(score *float64) bool {
	return score != nil && *score >= PassingScore
}

// matchScore counts case-insensitive index-by-index matches. Missing submitted entries
// count as wrong and surplus entries are ignored.
func matchScore(submitted, answerKey []string) (float64, error) {
	if len(answerKey) == 0 {
		return 0, ErrEmptyAnswerKey
	}

	matches := 0
	for i, expected := range answerKey {
		if i >= len(submitted) {
			break
		}
		if normalize(submitted[i]) == normalize(expected) {
			matches++
		}
	}

	score := float64(matches) / float64(len(answerKey)) * MaxScore
	if score < 0 {
		score = 0
	}
	if score > MaxScore {
		score = MaxScore
	}

	return score, nil
}

func normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
