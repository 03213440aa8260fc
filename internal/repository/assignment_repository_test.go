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

func newAssignmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAssignmentRepositoryStudentIDsForFaculty(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	rows := sqlmock.NewRows([]string{"student_id"}).AddRow("student-1").AddRow("student-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT student_id FROM assignments WHERE faculty_id = $1")).
		WithArgs("faculty-1").
		WillReturnRows(rows)

	ids, err := repo.StudentIDsForFaculty(context.Background(), "faculty-1")
	require.NoError(t, err)
	require.Equal(t, []string{"student-1", "student-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM assignments WHERE faculty_id = $1 AND student_id = $2")).
		WithArgs("faculty-1", "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "faculty-1", "student-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM assignments WHERE faculty_id = $1 AND student_id = $2")).
		WithArgs("faculty-1", "student-9").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.Exists(context.Background(), "faculty-1", "student-9")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.Assignment{FacultyID: "faculty-1", StudentID: "student-1", Semester: "2026-1"}
	require.NoError(t, repo.Create(context.Background(), assignment))
	require.NotEmpty(t, assignment.ID)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE id = $1")).
		WithArgs(assignment.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), assignment.ID))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "missing"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "faculty_id", "student_id", "semester", "created_at", "faculty_name", "student_name"}).
		AddRow("asg-1", "faculty-1", "student-1", "2026-1", time.Now(), "Dr. A", "B")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users f ON f.id = a.faculty_id")).
		WithArgs("faculty-1", "2026-1").
		WillReturnRows(rows)

	assignments, err := repo.List(context.Background(), "faculty-1", "", "2026-1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.Equal(t, "Dr. A", assignments[0].FacultyName)
	require.NoError(t, mock.ExpectationsWereMet())
}
