// Package spot provides the nap-spot domain: models, validation,
// authorization, visibility filtering, and the creation/approval
// workflow behind the spots API.
package spot

import (
	"strings"
	"time"
)

// Classification kind tags. System classifications are the
// category-scoped defaults ("Under Review", "Public") referenced
// directly from their category; standard classifications are created by
// administrators.
const (
	ClassificationKindSystem   = "system"
	ClassificationKindStandard = "standard"
)

// Spot is a user-submitted location record.
type Spot struct {
	ID               int64     `json:"id"`
	Notes            string    `json:"notes,omitempty"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	Approved         bool      `json:"approved"`
	UserID           string    `json:"user_id"`
	TypeID           int64     `json:"type_id"`
	ClassificationID int64     `json:"classification_id"`

	// Descriptors maps descriptor ID to the validated value attached to
	// this spot.
	Descriptors map[int64]string `json:"descriptors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category groups types, classifications, and descriptors. Crowdsource
// categories accept submissions from any authenticated principal.
//
// Each category carries explicit references to its default
// classifications instead of relying on name lookups at runtime. The
// references are validated when the category is stored.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Crowdsource bool   `json:"crowdsource"`

	// UnderReviewClassificationID references the classification assigned
	// to submissions from principals who cannot approve spots. Nil means
	// the category was set up without one, which blocks such submissions.
	UnderReviewClassificationID *int64 `json:"under_review_classification_id,omitempty"`

	// PublicClassificationID references the classification assigned on
	// approval when the author cannot create designated spots. Nil blocks
	// those approvals.
	PublicClassificationID *int64 `json:"public_classification_id,omitempty"`
}

// Type labels a spot's kind and belongs to exactly one category.
type Type struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
}

// Classification is a status/visibility tag on a spot. An empty
// ViewPermission makes approved spots visible to anonymous visitors; an
// empty CreatePermission lets any principal request the classification.
type Classification struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Color            string `json:"color"`
	Kind             string `json:"kind"`
	ViewPermission   string `json:"view_permission,omitempty"`
	CreatePermission string `json:"create_permission,omitempty"`
	CategoryID       int64  `json:"category_id"`
}

// Descriptor is a metadata field required by one or more categories,
// with a pipe-delimited enumeration of allowed values.
type Descriptor struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AllowedValues string `json:"allowed_values"`
}

// Allowed returns the descriptor's allowed values.
func (d Descriptor) Allowed() []string {
	return strings.Split(d.AllowedValues, "|")
}

// Allows reports whether value is in the descriptor's allowed set.
func (d Descriptor) Allows(value string) bool {
	for _, v := range d.Allowed() {
		if v == value {
			return true
		}
	}
	return false
}
