package models

import "time"

// Signature is one append-only entry in the sign-off ledger. Entries are
// never updated or deleted; they reference records loosely by category tag
// plus id so the audit trail stands on its own.
type Signature struct {
	ID         string    `db:"id" json:"id"`
	SignedByID string    `db:"signed_by_id" json:"signedById"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	Remark     *string   `db:"remark" json:"remark,omitempty"`
	SignedAt   time.Time `db:"signed_at" json:"signedAt"`
}
