package models

import "time"

// RecordStatus captures the lifecycle states of a logbook entry.
type RecordStatus string

const (
	RecordStatusDraft         RecordStatus = "DRAFT"
	RecordStatusSubmitted     RecordStatus = "SUBMITTED"
	RecordStatusNeedsRevision RecordStatus = "NEEDS_REVISION"
	RecordStatusSigned        RecordStatus = "SIGNED"
)

// Record is the shared envelope for a logbook entry in any category. The
// category-specific fields live in Payload and are opaque to the lifecycle
// engine.
type Record struct {
	ID             string       `db:"id" json:"id"`
	OwnerID        string       `db:"owner_id" json:"ownerId"`
	Category       string       `db:"category" json:"category"`
	SubCategory    string       `db:"sub_category" json:"subCategory,omitempty"`
	SequenceNo     int          `db:"sequence_no" json:"sequenceNo"`
	Tally          int          `db:"tally" json:"occurrenceTally"`
	Status         RecordStatus `db:"status" json:"status"`
	ReviewerRemark *string      `db:"reviewer_remark" json:"reviewerRemark,omitempty"`
	Payload        []byte       `db:"payload" json:"payload"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`
}

// RecordFilter constrains listing queries. OwnerIDs carries the visibility
// scope computed for the caller; an empty slice with Scoped set means the
// caller can see nothing.
type RecordFilter struct {
	OwnerID     string
	OwnerIDs    []string
	Scoped      bool
	Category    string
	SubCategory string
	Status      []RecordStatus
	Limit       int
	Offset      int
}
