package dto

// SetReviewPolicyRequest toggles auto-review for one category. AutoReview is
// a pointer so an omitted field fails validation instead of silently
// disabling.
type SetReviewPolicyRequest struct {
	Category   string `json:"category" validate:"required"`
	AutoReview *bool  `json:"autoReview" validate:"required"`
}
