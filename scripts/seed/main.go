// Command seed loads a demo data set into the database: one head of
// department, a couple of faculty reviewers and a handful of students with
// supervision assignments. Useful for local development and smoke tests.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/residency-logbook-api/internal/models"
	"github.com/noah-isme/residency-logbook-api/pkg/config"
	"github.com/noah-isme/residency-logbook-api/pkg/database"
)

type seedUser struct {
	Email    string
	FullName string
	Role     models.UserRole
}

func main() {
	var (
		password string
		semester string
		dryRun   bool
	)

	flag.StringVar(&password, "password", "changeme123", "Password assigned to every seeded account")
	flag.StringVar(&semester, "semester", "2026-1", "Semester used for supervision assignments")
	flag.BoolVar(&dryRun, "dry-run", false, "Print the plan without writing to the database")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	users := []seedUser{
		{Email: "hod@residency.local", FullName: "Dr. Head of Department", Role: models.RoleHOD},
		{Email: "faculty1@residency.local", FullName: "Dr. Faculty One", Role: models.RoleFaculty},
		{Email: "faculty2@residency.local", FullName: "Dr. Faculty Two", Role: models.RoleFaculty},
		{Email: "student1@residency.local", FullName: "Resident One", Role: models.RoleStudent},
		{Email: "student2@residency.local", FullName: "Resident Two", Role: models.RoleStudent},
		{Email: "student3@residency.local", FullName: "Resident Three", Role: models.RoleStudent},
	}

	if dryRun {
		for _, u := range users {
			fmt.Printf("would create %-8s %s\n", u.Role, u.Email)
		}
		return
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ids := make(map[string]string, len(users))
	for _, u := range users {
		id, err := upsertUser(db, u, string(hash))
		if err != nil {
			log.Fatalf("failed to seed %s: %v", u.Email, err)
		}
		ids[u.Email] = id
		fmt.Printf("seeded %-8s %s (%s)\n", u.Role, u.Email, id)
	}

	assignments := map[string][]string{
		"faculty1@residency.local": {"student1@residency.local", "student2@residency.local"},
		"faculty2@residency.local": {"student3@residency.local"},
	}
	for faculty, students := range assignments {
		for _, student := range students {
			if err := upsertAssignment(db, ids[faculty], ids[student], semester); err != nil {
				log.Fatalf("failed to assign %s to %s: %v", student, faculty, err)
			}
			fmt.Printf("assigned %s -> %s (%s)\n", shortEmail(student), shortEmail(faculty), semester)
		}
	}
}

func upsertUser(db *sqlx.DB, u seedUser, passwordHash string) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			updated_at = NOW()
		RETURNING id`
	if err := db.QueryRowx(query, id, u.Email, passwordHash, u.FullName, u.Role).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func upsertAssignment(db *sqlx.DB, facultyID, studentID, semester string) error {
	query := `
		INSERT INTO assignments (id, faculty_id, student_id, semester, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (faculty_id, student_id, semester) DO NOTHING`
	_, err := db.Exec(query, uuid.NewString(), facultyID, studentID, semester)
	return err
}

func shortEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
