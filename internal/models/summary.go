package models

import "time"

// CategoryProgress aggregates one student's standing in a single category.
type CategoryProgress struct {
	Category    string         `db:"category" json:"category"`
	Total       int            `db:"total" json:"total"`
	Signed      int            `db:"signed" json:"signed"`
	Pending     int            `db:"pending" json:"pending"`
	Drafts      int            `db:"drafts" json:"drafts"`
	SubTallies  map[string]int `json:"subTallies,omitempty"`
	LastUpdated *time.Time     `db:"last_updated" json:"lastUpdated,omitempty"`
}

// StudentSummary is the full progress report for one student.
type StudentSummary struct {
	StudentID   string             `json:"studentId"`
	Categories  []CategoryProgress `json:"categories"`
	GeneratedAt time.Time          `json:"generatedAt"`
}
