package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

// ProgressRepository persists course progress ledgers.
type ProgressRepository interface {
	Find(ctx context.Context, studentID, courseID uint) (models.CourseProgress, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.CourseProgress, error)
	Create(ctx context.Context, progress *models.CourseProgress) error
	Update(ctx context.Context, progress *models.CourseProgress) error
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates the repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Find(ctx context.Context, studentID, courseID uint) (models.CourseProgress, error) {
	var progress models.CourseProgress
	if err := conn(ctx, r.db).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&progress).Error; err != nil {
		return models.CourseProgress{}, err
	}

	return progress, nil
}

func (r *progressRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.CourseProgress, error) {
	var entries []models.CourseProgress
	if err := conn(ctx, r.db).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *progressRepository) Create(ctx context.Context, progress *models.CourseProgress) error {
	progress.Version = 1
	if err := conn(ctx, r.db).Create(progress).Error; err != nil {
		progress.Version = 0
		return translateWriteError(err)
	}
	return nil
}

func (r *progressRepository) Update(ctx context.Context, progress *models.CourseProgress) error {
	expected := progress.Version
	now := time.Now().UTC()

	result := conn(ctx, r.db).Model(&models.CourseProgress{}).
		Where("id = ? AND version = ?", progress.ID, expected).
		Updates(map[string]interface{}{
			"chapters":   progress.Chapters,
			"version":    expected + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	progress.Version = expected + 1
	progress.UpdatedAt = now
	return nil
}
