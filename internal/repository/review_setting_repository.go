package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

// ReviewSettingRepository persists the per-category auto-review toggles.
type ReviewSettingRepository struct {
	db *sqlx.DB
}

// NewReviewSettingRepository constructs the repository.
func NewReviewSettingRepository(db *sqlx.DB) *ReviewSettingRepository {
	return &ReviewSettingRepository{db: db}
}

// Get returns the setting for one category.
func (r *ReviewSettingRepository) Get(ctx context.Context, cat string) (*models.ReviewSetting, error) {
	const query = `SELECT category, auto_review, updated_by, updated_at FROM review_settings WHERE category = $1`
	var setting models.ReviewSetting
	if err := r.db.GetContext(ctx, &setting, query, cat); err != nil {
		return nil, err
	}
	return &setting, nil
}

// List returns all stored settings.
func (r *ReviewSettingRepository) List(ctx context.Context) ([]models.ReviewSetting, error) {
	const query = `SELECT category, auto_review, updated_by, updated_at FROM review_settings ORDER BY category`
	var settings []models.ReviewSetting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list review settings: %w", err)
	}
	return settings, nil
}

// Upsert stores a setting, replacing any previous value for the category.
// Concurrent writers resolve last-write-wins.
func (r *ReviewSettingRepository) Upsert(ctx context.Context, setting *models.ReviewSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO review_settings (category, auto_review, updated_by, updated_at)
		VALUES (:category, :auto_review, :updated_by, :updated_at)
		ON CONFLICT (category)
		DO UPDATE SET auto_review = EXCLUDED.auto_review, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert review setting: %w", err)
	}
	return nil
}
