// Package auth provides JWT token management and the permission model
// used to gate spot submission, visibility, and approval.
package auth

// Named permissions checked by the spot workflow. Classification
// view/create permissions are free-form strings matched against the
// same set.
const (
	// PermApproveSpots lets a principal approve spots and self-approve
	// their own submissions.
	PermApproveSpots = "approve spots"

	// PermMakeDesignatedSpots lets a principal submit into categories
	// that are not open to crowdsourcing.
	PermMakeDesignatedSpots = "make designated spots"

	// PermViewUnapprovedSpots lets a principal see spots that have not
	// been approved yet.
	PermViewUnapprovedSpots = "view unapproved spots"

	// PermCreateDesignatedSpots marks authors whose spots keep their
	// classification when approved.
	PermCreateDesignatedSpots = "create designated spots"
)

// PermissionSet is an explicit set of named permission strings carried
// by a principal. It is a value passed into each component; there is no
// ambient permission lookup.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a PermissionSet from the given permission names.
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// Can reports whether the set contains the named permission.
// The empty permission is held by everyone: classifications with no
// view or create permission string are open.
func (s PermissionSet) Can(perm string) bool {
	if perm == "" {
		return true
	}
	_, ok := s[perm]
	return ok
}

// List returns the permission names in the set. Order is unspecified.
func (s PermissionSet) List() []string {
	perms := make([]string, 0, len(s))
	for p := range s {
		perms = append(perms, p)
	}
	return perms
}

// Principal is the acting authenticated user.
type Principal struct {
	// ID is the stable user identifier (JWT subject).
	ID string

	// Perms is the principal's permission set.
	Perms PermissionSet
}

// Can reports whether the principal holds the named permission.
// A nil principal (anonymous request) holds nothing.
func (p *Principal) Can(perm string) bool {
	if p == nil {
		return false
	}
	return p.Perms.Can(perm)
}
