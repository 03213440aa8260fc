package models

import "time"

// Assignment links a faculty reviewer to a student for one semester. The
// triple is the unit of review visibility: faculty only see records owned by
// students they are assigned to, across any semester.
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	FacultyID string    `db:"faculty_id" json:"facultyId"`
	StudentID string    `db:"student_id" json:"studentId"`
	Semester  string    `db:"semester" json:"semester"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AssignmentDetail enriches an assignment with display names for listings.
type AssignmentDetail struct {
	Assignment
	FacultyName string `db:"faculty_name" json:"facultyName"`
	StudentName string `db:"student_name" json:"studentName"`
}
