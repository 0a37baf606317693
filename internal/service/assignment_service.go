package service

import (
	"context"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AssignmentService exposes assignment read use cases.
type AssignmentService interface {
	List(ctx context.Context, req dto.AssignmentListRequest) (dto.AssignmentListResponse, error)
	Get(ctx context.Context, id uint, includeAnswers bool) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) List(ctx context.Context, req dto.AssignmentListRequest) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := clampPageSize(req.PageSize)

	assignments, total, err := s.repo.ListWithFilter(ctx, repository.AssignmentFilter{
		Search:   req.Search,
		Type:     req.Type,
		Sort:     req.Sort,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	return dto.AssignmentListResponse{
		Items: dto.NewAssignmentResponseSlice(assignments),
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

func (s *assignmentService) Get(ctx context.Context, id uint, includeAnswers bool) (dto.AssignmentResponse, error) {
	if !includeAnswers {
		assignment, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.AssignmentResponse{}, ErrAssignmentNotFound
			}
			return dto.AssignmentResponse{}, err
		}
		return dto.NewAssignmentResponse(assignment), nil
	}

	assignment, err := s.repo.GetWithAnswerKey(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponseWithAnswers(assignment), nil
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	default:
		return size
	}
}
