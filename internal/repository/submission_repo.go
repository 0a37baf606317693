package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	AssignmentID *uint
	StudentID    *uint
}

// SubmissionRepository persists submission ledgers.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Find(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := conn(ctx, r.db).Model(&models.Submission{})

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	var submissions []models.Submission
	if err := query.Order("updated_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := conn(ctx, r.db).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Find(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := conn(ctx, r.db).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// Create inserts a new ledger. A concurrent insert for the same pair yields ErrVersionConflict.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	submission.Version = 1
	if err := conn(ctx, r.db).Create(submission).Error; err != nil {
		submission.Version = 0
		return translateWriteError(err)
	}
	return nil
}

// Update writes the ledger only if its version is unchanged since it was read.
func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	expected := submission.Version
	now := time.Now().UTC()

	result := conn(ctx, r.db).Model(&models.Submission{}).
		Where("id = ? AND version = ?", submission.ID, expected).
		Updates(map[string]interface{}{
			"submit_count":  submission.SubmitCount,
			"highest_score": submission.HighestScore,
			"attempts":      submission.Attempts,
			"version":       expected + 1,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	submission.Version = expected + 1
	submission.UpdatedAt = now
	return nil
}
