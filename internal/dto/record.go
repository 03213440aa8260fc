package dto

import (
	"encoding/json"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

// CreateRecordRequest opens a new draft entry in a category.
type CreateRecordRequest struct {
	Category    string          `json:"category" validate:"required"`
	SubCategory string          `json:"subCategory"`
	Payload     json.RawMessage `json:"payload" validate:"required"`
}

// UpdateRecordRequest edits a draft or revision entry. SubCategory is only
// honoured for categories that allow pre-submission sub-type changes.
type UpdateRecordRequest struct {
	Payload     json.RawMessage `json:"payload" validate:"required"`
	SubCategory *string         `json:"subCategory,omitempty"`
}

// ReviewActionRequest carries the reviewer remark for sign and reject
// actions. Remark is required on reject, optional on sign.
type ReviewActionRequest struct {
	Remark string `json:"remark"`
}

// RecordQuery constrains record listings.
type RecordQuery struct {
	OwnerID     string
	Category    string
	SubCategory string
	Status      []models.RecordStatus
	Limit       int
	Offset      int
}
