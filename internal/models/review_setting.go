package models

import "time"

// ReviewSetting is the per-category auto-review toggle. When enabled,
// submissions in the category are signed immediately by the system signer
// instead of queueing for manual review.
type ReviewSetting struct {
	Category   string    `db:"category" json:"category"`
	AutoReview bool      `db:"auto_review" json:"autoReview"`
	UpdatedBy  string    `db:"updated_by" json:"updatedBy"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}
