package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

// AssignmentRepository persists faculty-student supervision assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// StudentIDsForFaculty returns all students assigned to the faculty across
// any semester. This is the faculty visibility scope.
func (r *AssignmentRepository) StudentIDsForFaculty(ctx context.Context, facultyID string) ([]string, error) {
	const query = `SELECT DISTINCT student_id FROM assignments WHERE faculty_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, facultyID); err != nil {
		return nil, fmt.Errorf("list assigned students: %w", err)
	}
	return ids, nil
}

// Exists checks whether a faculty-student pair is assigned in any semester.
func (r *AssignmentRepository) Exists(ctx context.Context, facultyID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM assignments WHERE faculty_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, facultyID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return true, nil
}

// ExistsExact checks for the exact (faculty, student, semester) triple.
func (r *AssignmentRepository) ExistsExact(ctx context.Context, facultyID, studentID, semester string) (bool, error) {
	const query = `SELECT 1 FROM assignments WHERE faculty_id = $1 AND student_id = $2 AND semester = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, facultyID, studentID, semester); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assignment triple: %w", err)
	}
	return true, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, faculty_id, student_id, semester, created_at)
		VALUES (:id, :faculty_id, :student_id, :semester, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment by id.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns assignments with display names, optionally filtered by
// faculty, student or semester.
func (r *AssignmentRepository) List(ctx context.Context, facultyID, studentID, semester string) ([]models.AssignmentDetail, error) {
	query := `
SELECT a.id, a.faculty_id, a.student_id, a.semester, a.created_at,
       f.full_name AS faculty_name, s.full_name AS student_name
FROM assignments a
JOIN users f ON f.id = a.faculty_id
JOIN users s ON s.id = a.student_id
WHERE 1=1`
	var args []interface{}
	if facultyID != "" {
		args = append(args, facultyID)
		query += fmt.Sprintf(" AND a.faculty_id = $%d", len(args))
	}
	if studentID != "" {
		args = append(args, studentID)
		query += fmt.Sprintf(" AND a.student_id = $%d", len(args))
	}
	if semester != "" {
		args = append(args, semester)
		query += fmt.Sprintf(" AND a.semester = $%d", len(args))
	}
	query += " ORDER BY a.semester DESC, s.full_name ASC"
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}
