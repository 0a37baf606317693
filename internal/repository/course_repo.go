package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

// CourseRepository reads course structure and appends authoring changes.
type CourseRepository interface {
	GetWithChapters(ctx context.Context, id uint) (models.Course, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Course, error)
	LockStructure(ctx context.Context, id uint) (uint, error)
	BumpVersion(ctx context.Context, course *models.Course) error
	Create(ctx context.Context, course *models.Course) error
	CreateChapter(ctx context.Context, chapter *models.Chapter) error
	AppendContent(ctx context.Context, content *models.ChapterContent) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates the repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

// GetWithChapters loads the course with chapters and their content sorted by order.
func (r *courseRepository) GetWithChapters(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	err := conn(ctx, r.db).
		Preload("Chapters", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC")
		}).
		Preload("Chapters.Content", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC")
		}).
		First(&course, id).Error
	if err != nil {
		return models.Course{}, err
	}

	return course, nil
}

// ListByAssignment returns the courses whose chapters reference the assignment.
func (r *courseRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Course, error) {
	chapters := conn(ctx, r.db).Model(&models.Chapter{}).
		Select("chapters.course_id").
		Joins("JOIN chapter_contents ON chapter_contents.chapter_id = chapters.id").
		Where("chapter_contents.assignment_id = ?", assignmentID)

	var courses []models.Course
	if err := conn(ctx, r.db).
		Where("id IN (?)", chapters).
		Order("id ASC").
		Find(&courses).Error; err != nil {
		return nil, err
	}

	return courses, nil
}

// LockStructure takes a share lock on the course row for the rest of the transaction and
// returns its structure version. Authoring bumps the version under an exclusive lock, so the
// two serialise. Dialects without row locks (sqlite) ignore the clause.
func (r *courseRepository) LockStructure(ctx context.Context, id uint) (uint, error) {
	var course models.Course
	if err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Select("id", "version").
		First(&course, id).Error; err != nil {
		return 0, err
	}
	return course.Version, nil
}

// BumpVersion marks a structural change. It fails with ErrVersionConflict when another
// writer changed the course since it was read.
func (r *courseRepository) BumpVersion(ctx context.Context, course *models.Course) error {
	expected := course.Version
	now := time.Now().UTC()

	result := conn(ctx, r.db).Model(&models.Course{}).
		Where("id = ? AND version = ?", course.ID, expected).
		Updates(map[string]interface{}{
			"version":    expected + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	course.Version = expected + 1
	course.UpdatedAt = now
	return nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return conn(ctx, r.db).Create(course).Error
}

// CreateChapter inserts a chapter. A concurrent insert of the same order yields ErrVersionConflict.
func (r *courseRepository) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	if err := conn(ctx, r.db).Omit("Content").Create(chapter).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

// AppendContent inserts a content item. A concurrent append at the same order yields ErrVersionConflict.
func (r *courseRepository) AppendContent(ctx context.Context, content *models.ChapterContent) error {
	if err := conn(ctx, r.db).Create(content).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}
