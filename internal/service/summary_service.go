package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/residency-logbook-api/internal/category"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
)

type progressReader interface {
	CategoryProgress(ctx context.Context, ownerID string) ([]models.CategoryProgress, error)
	SubCategoryTallies(ctx context.Context, ownerID, cat string) (map[string]int, error)
}

type summaryAssignmentChecker interface {
	Exists(ctx context.Context, facultyID, studentID string) (bool, error)
}

// SummaryService builds per-student progress reports. Summaries are cached
// per student and invalidated whenever one of their records transitions.
type SummaryService struct {
	records     progressReader
	assignments summaryAssignmentChecker
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewSummaryService constructs the service.
func NewSummaryService(records progressReader, assignments summaryAssignmentChecker, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{records: records, assignments: assignments, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// StudentSummary returns the progress report for one student, subject to the
// caller's visibility.
func (s *SummaryService) StudentSummary(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.StudentSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if studentID == "" {
		studentID = actor.UserID
	}
	if err := s.checkVisibility(ctx, studentID, actor); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("summary:%s", studentID)
	if s.cache.Enabled() {
		var cached models.StudentSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	progress, err := s.records.CategoryProgress(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate progress")
	}
	for i := range progress {
		spec, ok := category.Lookup(progress[i].Category)
		if !ok || !spec.TallyPartitioned {
			continue
		}
		tallies, err := s.records.SubCategoryTallies(ctx, studentID, spec.Tag)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate sub-category tallies")
		}
		progress[i].SubTallies = tallies
	}

	summary := &models.StudentSummary{
		StudentID:   studentID,
		Categories:  progress,
		GeneratedAt: time.Now().UTC(),
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache summary", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return summary, nil
}

// Visibility mirrors the record rules: an out-of-scope student reads as not
// found rather than forbidden.
func (s *SummaryService) checkVisibility(ctx context.Context, studentID string, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleHOD:
		return nil
	case models.RoleStudent:
		if studentID != actor.UserID {
			return appErrors.ErrNotFound
		}
		return nil
	case models.RoleFaculty:
		assigned, err := s.assignments.Exists(ctx, actor.UserID, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
		}
		if !assigned {
			return appErrors.ErrNotFound
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}
