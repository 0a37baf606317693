package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
)

// AuditEntry describes a staff action worth keeping on record.
type AuditEntry struct {
	Actor      Actor
	Action     string
	EntityType string
	EntityID   uint
	Metadata   map[string]interface{}
}

// AuditTrail records staff actions that change grades or course structure. Record joins
// the caller's transaction when one is bound to ctx.
type AuditTrail interface {
	Record(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type auditTrail struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuditTrail constructs the activity log backed audit trail.
func NewAuditTrail(repo repository.ActivityLogRepository, validate *validator.Validate, logger zerolog.Logger) AuditTrail {
	return &auditTrail{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "audit_trail").Logger(),
	}
}

func (s *auditTrail) Record(ctx context.Context, entry AuditEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.Actor.ID,
		ActorRole:  normalizeRole(entry.Actor.Role),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		Metadata:   sanitizeMetadata(entry.Metadata),
	}
	if entry.EntityID > 0 {
		id := entry.EntityID
		model.EntityID = &id
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return err
	}
	return nil
}

func (s *auditTrail) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityListResponse{}, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := clampPageSize(req.PageSize)

	filter := repository.ActivityLogFilter{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}

	return dto.ActivityListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// recordAudit is a no-op when no trail is configured.
func recordAudit(ctx context.Context, trail AuditTrail, entry AuditEntry) error {
	if trail == nil {
		return nil
	}
	return trail.Record(ctx, entry)
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
