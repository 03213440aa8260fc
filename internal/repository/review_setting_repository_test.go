package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

func newReviewSettingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReviewSettingRepositoryGet(t *testing.T) {
	db, mock, cleanup := newReviewSettingRepoMock(t)
	defer cleanup()

	repo := NewReviewSettingRepository(db)
	rows := sqlmock.NewRows([]string{"category", "auto_review", "updated_by", "updated_at"}).
		AddRow("academic-session", true, "hod-1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, auto_review, updated_by, updated_at FROM review_settings WHERE category = $1")).
		WithArgs("academic-session").
		WillReturnRows(rows)

	setting, err := repo.Get(context.Background(), "academic-session")
	require.NoError(t, err)
	require.True(t, setting.AutoReview)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, auto_review, updated_by, updated_at FROM review_settings WHERE category = $1")).
		WithArgs("case-log").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Get(context.Background(), "case-log")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewSettingRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newReviewSettingRepoMock(t)
	defer cleanup()

	repo := NewReviewSettingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_settings")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	setting := &models.ReviewSetting{Category: "seminar", AutoReview: true, UpdatedBy: "hod-1"}
	require.NoError(t, repo.Upsert(context.Background(), setting))
	require.False(t, setting.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
