package category

import (
	"sort"
	"strings"
)

// Spec declares the lifecycle-relevant metadata for one record category. All
// categories share the same generic engine; this is the only place where they
// differ.
type Spec struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
	// TallyPartitioned categories number and tally per
	// (owner, category, subCategory) instead of (owner, category).
	TallyPartitioned bool `json:"tallyPartitioned"`
	// SubCategoryMutable allows editing the sub-category while the record is
	// still in a pre-submission state.
	SubCategoryMutable bool `json:"subCategoryMutable"`
	// SubCategories restricts the allowed sub-category values when non-empty.
	SubCategories []string `json:"subCategories,omitempty"`
	// RequiredKeys are top-level payload keys that must be present on
	// create/update. Deeper schema checks belong to the presentation layer.
	RequiredKeys []string `json:"requiredKeys,omitempty"`
	// AutoReviewDefault seeds the review policy for categories where review
	// is procedural.
	AutoReviewDefault bool `json:"autoReviewDefault"`
}

var registry = map[string]Spec{
	"case-log": {
		Tag: "case-log", Name: "Case Log",
		TallyPartitioned: true,
		SubCategories:    []string{"OPD", "IPD", "ICU", "CASUALTY"},
		RequiredKeys:     []string{"date", "diagnosis"},
	},
	"procedure": {
		Tag: "procedure", Name: "Procedure Log",
		TallyPartitioned:   true,
		SubCategoryMutable: true,
		RequiredKeys:       []string{"date", "procedureName", "competencyLevel"},
	},
	"diagnostic": {
		Tag: "diagnostic", Name: "Diagnostic Test",
		TallyPartitioned:   true,
		SubCategoryMutable: true,
		RequiredKeys:       []string{"date", "testName"},
	},
	"imaging": {
		Tag: "imaging", Name: "Imaging Interpretation",
		TallyPartitioned: true,
		SubCategories:    []string{"XRAY", "CT", "MRI", "USG"},
		RequiredKeys:     []string{"date", "findings"},
	},
	"lab-report": {
		Tag: "lab-report", Name: "Laboratory Report Review",
		TallyPartitioned: true,
		RequiredKeys:     []string{"date", "testName"},
	},
	"academic-session": {
		Tag: "academic-session", Name: "Academic Session",
		RequiredKeys:      []string{"date", "topic"},
		AutoReviewDefault: true,
	},
	"seminar": {
		Tag: "seminar", Name: "Seminar",
		RequiredKeys: []string{"date", "topic", "role"},
	},
	"journal-club": {
		Tag: "journal-club", Name: "Journal Club",
		RequiredKeys: []string{"date", "article"},
	},
	"case-presentation": {
		Tag: "case-presentation", Name: "Case Presentation",
		RequiredKeys: []string{"date", "caseSummary"},
	},
	"thesis-progress": {
		Tag: "thesis-progress", Name: "Thesis Progress",
		RequiredKeys: []string{"date", "milestone"},
	},
	"conference": {
		Tag: "conference", Name: "Conference Attendance",
		RequiredKeys:      []string{"date", "name"},
		AutoReviewDefault: true,
	},
	"publication": {
		Tag: "publication", Name: "Publication",
		RequiredKeys: []string{"title", "journal"},
	},
	"community-posting": {
		Tag: "community-posting", Name: "Community Posting",
		RequiredKeys: []string{"startDate", "endDate", "site"},
	},
	"rotation": {
		Tag: "rotation", Name: "Clinical Rotation",
		RequiredKeys: []string{"startDate", "endDate", "department"},
	},
	"emergency-duty": {
		Tag: "emergency-duty", Name: "Emergency Duty",
		TallyPartitioned:  true,
		RequiredKeys:      []string{"date"},
		AutoReviewDefault: true,
	},
	"immunization": {
		Tag: "immunization", Name: "Immunization Session",
		TallyPartitioned: true,
		RequiredKeys:     []string{"date", "vaccine"},
	},
	"evaluation": {
		Tag: "evaluation", Name: "Faculty Evaluation",
		RequiredKeys: []string{"period"},
	},
	"workshop": {
		Tag: "workshop", Name: "Workshop / CME",
		RequiredKeys:      []string{"date", "name"},
		AutoReviewDefault: true,
	},
	"award": {
		Tag: "award", Name: "Award / Achievement",
		RequiredKeys: []string{"date", "title"},
	},
	"leave": {
		Tag: "leave", Name: "Leave Record",
		RequiredKeys:      []string{"startDate", "endDate", "type"},
		AutoReviewDefault: true,
	},
}

// Lookup resolves a category spec by tag. Tags are matched case-insensitively.
func Lookup(tag string) (Spec, bool) {
	spec, ok := registry[strings.ToLower(strings.TrimSpace(tag))]
	return spec, ok
}

// Tags returns all registered category tags in stable order.
func Tags() []string {
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// All returns every registered spec in tag order.
func All() []Spec {
	tags := Tags()
	specs := make([]Spec, 0, len(tags))
	for _, tag := range tags {
		specs = append(specs, registry[tag])
	}
	return specs
}

// CanonicalSubCategory resolves the stored spelling for a sub-category value.
// Enumerated categories match case-insensitively and return the declared
// spelling, so spelling variants of the same sub-category land in the same
// tally partition. An empty allowed set accepts any value as given, including
// none.
func (s Spec) CanonicalSubCategory(value string) (string, bool) {
	if len(s.SubCategories) == 0 {
		return value, true
	}
	if value == "" {
		return "", false
	}
	for _, allowed := range s.SubCategories {
		if strings.EqualFold(allowed, value) {
			return allowed, true
		}
	}
	return "", false
}

// AllowsSubCategory reports whether the value is legal for this category.
func (s Spec) AllowsSubCategory(value string) bool {
	_, ok := s.CanonicalSubCategory(value)
	return ok
}
