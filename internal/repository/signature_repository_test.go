package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

func newSignatureRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSignatureRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newSignatureRepoMock(t)
	defer cleanup()

	repo := NewSignatureRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signatures")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	remark := "countersigned"
	signature := &models.Signature{
		SignedByID: "hod-1",
		EntityType: "case-log",
		EntityID:   "rec-1",
		Remark:     &remark,
	}
	require.NoError(t, repo.Append(context.Background(), signature))
	require.NotEmpty(t, signature.ID)
	require.False(t, signature.SignedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignatureRepositoryListFor(t *testing.T) {
	db, mock, cleanup := newSignatureRepoMock(t)
	defer cleanup()

	repo := NewSignatureRepository(db)
	rows := sqlmock.NewRows([]string{"id", "signed_by_id", "entity_type", "entity_id", "remark", "signed_at"}).
		AddRow("sig-1", "system:auto-review", "academic-session", "rec-1", nil, time.Now()).
		AddRow("sig-2", "faculty-1", "academic-session", "rec-1", "verified", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, signed_by_id, entity_type, entity_id, remark, signed_at")).
		WithArgs("academic-session", "rec-1").
		WillReturnRows(rows)

	signatures, err := repo.ListFor(context.Background(), "academic-session", "rec-1")
	require.NoError(t, err)
	require.Len(t, signatures, 2)
	require.Equal(t, "system:auto-review", signatures[0].SignedByID)
	require.Nil(t, signatures[0].Remark)
	require.Equal(t, "verified", *signatures[1].Remark)
	require.NoError(t, mock.ExpectationsWereMet())
}
