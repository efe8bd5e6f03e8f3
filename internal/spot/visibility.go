package spot

import "github.com/rit-atlas/atlas/internal/auth"

// FilterVisible returns the subset of spots the principal may view,
// preserving input order. classifications maps classification ID to the
// classification carrying each spot's view permission.
//
// Rules:
//   - Anonymous (nil principal): approved spots whose classification has
//     no view permission.
//   - Authenticated: unapproved spots if the principal may view
//     unapproved spots; approved spots whose view permission the
//     principal holds; and always the principal's own spots.
func FilterVisible(spots []*Spot, classifications map[int64]*Classification, principal *auth.Principal) []*Spot {
	visible := make([]*Spot, 0, len(spots))
	for _, s := range spots {
		if spotVisible(s, classifications[s.ClassificationID], principal) {
			visible = append(visible, s)
		}
	}
	return visible
}

func spotVisible(s *Spot, c *Classification, principal *auth.Principal) bool {
	viewPermission := ""
	if c != nil {
		viewPermission = c.ViewPermission
	}

	if principal == nil {
		return s.Approved && viewPermission == ""
	}
	if !s.Approved && principal.Can(auth.PermViewUnapprovedSpots) {
		return true
	}
	return (s.Approved && principal.Can(viewPermission)) || s.UserID == principal.ID
}

// FilterCreatable restricts classifications to those the principal may
// request on a new spot, preserving input order. A nil principal gets
// nothing; submission requires authentication upstream.
func FilterCreatable(classifications []*Classification, principal *auth.Principal) []*Classification {
	creatable := make([]*Classification, 0, len(classifications))
	if principal == nil {
		return creatable
	}
	for _, c := range classifications {
		if principal.Can(c.CreatePermission) {
			creatable = append(creatable, c)
		}
	}
	return creatable
}
