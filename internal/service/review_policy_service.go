package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/residency-logbook-api/internal/category"
	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
)

type reviewSettingStore interface {
	Get(ctx context.Context, cat string) (*models.ReviewSetting, error)
	List(ctx context.Context) ([]models.ReviewSetting, error)
	Upsert(ctx context.Context, setting *models.ReviewSetting) error
}

type policyAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ReviewPolicyService manages the per-category auto-review toggles. Stored
// settings override the registry defaults; categories never touched fall
// back to their registry default.
type ReviewPolicyService struct {
	repo      reviewSettingStore
	audit     policyAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewPolicyService constructs the service.
func NewReviewPolicyService(repo reviewSettingStore, audit policyAuditLogger, validate *validator.Validate, logger *zap.Logger) *ReviewPolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewPolicyService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// IsAutoReviewEnabled reports the effective policy for a category.
func (s *ReviewPolicyService) IsAutoReviewEnabled(ctx context.Context, cat string) (bool, error) {
	spec, ok := category.Lookup(cat)
	if !ok {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category: %s", cat))
	}
	setting, err := s.repo.Get(ctx, spec.Tag)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return spec.AutoReviewDefault, nil
		}
		return false, fmt.Errorf("read review setting: %w", err)
	}
	return setting.AutoReview, nil
}

// Set stores a new toggle value. Reviewer roles only.
func (s *ReviewPolicyService) Set(ctx context.Context, req dto.SetReviewPolicyRequest, actor *models.JWTClaims) (*models.ReviewSetting, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleFaculty && actor.Role != models.RoleHOD {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only reviewers may change the review policy")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review policy payload")
	}
	spec, ok := category.Lookup(req.Category)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category: %s", req.Category))
	}

	setting := &models.ReviewSetting{
		Category:   spec.Tag,
		AutoReview: *req.AutoReview,
		UpdatedBy:  actor.UserID,
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review setting")
	}

	s.emitAudit(ctx, actor.UserID, setting)
	return setting, nil
}

// List returns the effective policy for every registered category, merging
// stored overrides onto registry defaults.
func (s *ReviewPolicyService) List(ctx context.Context) ([]models.ReviewSetting, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review settings")
	}
	overrides := make(map[string]models.ReviewSetting, len(stored))
	for _, setting := range stored {
		overrides[strings.ToLower(setting.Category)] = setting
	}

	specs := category.All()
	settings := make([]models.ReviewSetting, 0, len(specs))
	for _, spec := range specs {
		if override, ok := overrides[spec.Tag]; ok {
			settings = append(settings, override)
			continue
		}
		settings = append(settings, models.ReviewSetting{
			Category:   spec.Tag,
			AutoReview: spec.AutoReviewDefault,
		})
	}
	return settings, nil
}

func (s *ReviewPolicyService) emitAudit(ctx context.Context, actorID string, setting *models.ReviewSetting) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(setting)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPolicyChange,
		Resource:   "review_settings",
		ResourceID: &setting.Category,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "review-policy-service",
	}); err != nil {
		s.logger.Warn("failed to persist policy audit log", zap.Error(err))
	}
}
