package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/models"
)

// AnswerKeyRepository stores the authoritative answers of assignments.
type AnswerKeyRepository interface {
	GetByID(ctx context.Context, id uint) (models.AnswerKey, error)
	Create(ctx context.Context, key *models.AnswerKey) error
}

type answerKeyRepository struct {
	db *gorm.DB
}

// NewAnswerKeyRepository instantiates the repository.
func NewAnswerKeyRepository(db *gorm.DB) AnswerKeyRepository {
	return &answerKeyRepository{db: db}
}

func (r *answerKeyRepository) GetByID(ctx context.Context, id uint) (models.AnswerKey, error) {
	var key models.AnswerKey
	if err := conn(ctx, r.db).First(&key, id).Error; err != nil {
		return models.AnswerKey{}, err
	}

	return key, nil
}

func (r *answerKeyRepository) Create(ctx context.Context, key *models.AnswerKey) error {
	return conn(ctx, r.db).Create(key).Error
}
