package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

func newRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRecordRepositoryCreateAssignsSequenceAndTally(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(sequence_no), 0) + 1 FROM records WHERE owner_id = $1 AND category = $2 AND sub_category = $3")).
		WithArgs("student-1", "case-log", "OPD").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) + 1 FROM records")).
		WithArgs("student-1", "case-log", "OPD").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.Record{
		OwnerID:     "student-1",
		Category:    "case-log",
		SubCategory: "OPD",
		Payload:     []byte(`{"date":"2026-02-10","diagnosis":"dengue"}`),
	}
	require.NoError(t, repo.Create(context.Background(), record, true))
	require.Equal(t, 12, record.SequenceNo)
	require.Equal(t, 5, record.Tally)
	require.Equal(t, models.RecordStatusDraft, record.Status)
	require.NotEmpty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryCreateUnpartitionedSequence(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(sequence_no), 0) + 1 FROM records WHERE owner_id = $1 AND category = $2")).
		WithArgs("student-1", "seminar").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) + 1 FROM records")).
		WithArgs("student-1", "seminar", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.Record{
		OwnerID:  "student-1",
		Category: "seminar",
		Payload:  []byte(`{"date":"2026-02-10","topic":"sepsis","role":"presenter"}`),
	}
	require.NoError(t, repo.Create(context.Background(), record, false))
	require.Equal(t, 1, record.SequenceNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(sequence_no), 0) + 1")).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) + 1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	record := &models.Record{
		OwnerID:  "student-1",
		Category: "seminar",
		Payload:  []byte(`{}`),
	}
	err := repo.Create(context.Background(), record, false)
	require.ErrorIs(t, err, ErrUniqueViolation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListScopedEmptyShortCircuits(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	records, err := repo.List(context.Background(), models.RecordFilter{Scoped: true})
	require.NoError(t, err)
	require.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	rows := sqlmock.NewRows([]string{"id", "owner_id", "category", "sub_category", "sequence_no", "tally", "status", "reviewer_remark", "payload", "created_at", "updated_at"}).
		AddRow("rec-1", "student-1", "case-log", "OPD", 1, 1, "SUBMITTED", nil, []byte(`{}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, category, sub_category")).
		WithArgs("student-1", "case-log", "SUBMITTED").
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.RecordFilter{
		OwnerID:  "student-1",
		Category: "case-log",
		Status:   []models.RecordStatus{models.RecordStatusSubmitted},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "rec-1", records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryTransitionLostRace(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE records SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), TransitionParams{
		ID:   "rec-1",
		From: []models.RecordStatus{models.RecordStatusSubmitted},
		To:   models.RecordStatusNeedsRevision,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySignFlipsAndAppendsLedger(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE records SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signatures")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	signature := &models.Signature{
		SignedByID: "faculty-1",
		EntityType: "case-log",
		EntityID:   "rec-1",
	}
	err := repo.Sign(context.Background(), TransitionParams{
		ID:   "rec-1",
		From: []models.RecordStatus{models.RecordStatusSubmitted},
	}, signature)
	require.NoError(t, err)
	require.NotEmpty(t, signature.ID)
	require.False(t, signature.SignedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySignRolledBackOnLostRace(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE records SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Sign(context.Background(), TransitionParams{
		ID:   "rec-1",
		From: []models.RecordStatus{models.RecordStatusSubmitted},
	}, &models.Signature{SignedByID: "faculty-1", EntityType: "case-log", EntityID: "rec-1"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDeleteOnlyDrafts(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM records WHERE id = $1 AND status = $2")).
		WithArgs("rec-1", models.RecordStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "rec-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryCategoryProgress(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"category", "total", "signed", "pending", "drafts", "last_updated"}).
		AddRow("case-log", 10, 6, 3, 1, now).
		AddRow("seminar", 2, 2, 0, 0, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category")).
		WithArgs("student-1").
		WillReturnRows(rows)

	progress, err := repo.CategoryProgress(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	require.Equal(t, 6, progress[0].Signed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdatePayloadGuardsState(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE records SET payload")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePayload(context.Background(), "rec-1", []byte(`{"date":"x"}`), nil)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
