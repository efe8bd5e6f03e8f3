package spot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rit-atlas/atlas/internal/auth"
)

// AuthorizeSubmission decides whether the principal may create a spot in
// the category. Crowdsource categories are open to any authenticated
// principal; others require the "make designated spots" permission.
func AuthorizeSubmission(principal *auth.Principal, category *Category) Bag {
	bag := NewBag()
	if !category.Crowdsource && !principal.Can(auth.PermMakeDesignatedSpots) {
		bag.Add(KeyPermission, "The category you specified does not allow crowdsourced spots.")
	}
	return bag
}

// ResolveClassification returns the classification a new spot should
// carry. Principals holding "approve spots" keep the classification they
// requested; everyone else is downgraded to the under-review
// classification of the requested classification's category.
//
// A category set up without an under-review reference reports an
// internal error in the bag, rejecting the submission. The returned
// error is reserved for repository failures.
func ResolveClassification(ctx context.Context, taxonomy TaxonomyRepository, principal *auth.Principal, requested *Classification) (*Classification, Bag, error) {
	bag := NewBag()
	if principal.Can(auth.PermApproveSpots) {
		return requested, bag, nil
	}

	category, err := taxonomy.CategoryByID(ctx, requested.CategoryID)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			bag.Add(KeyInternal, "Under review classification does not exist for the given category.")
			return nil, bag, nil
		}
		return nil, bag, fmt.Errorf("resolve classification: %w", err)
	}
	if category.UnderReviewClassificationID == nil {
		bag.Add(KeyInternal, "Under review classification does not exist for the given category.")
		return nil, bag, nil
	}

	underReview, err := taxonomy.ClassificationByID(ctx, *category.UnderReviewClassificationID)
	if err != nil {
		if errors.Is(err, ErrClassificationNotFound) {
			bag.Add(KeyInternal, "Under review classification does not exist for the given category.")
			return nil, bag, nil
		}
		return nil, bag, fmt.Errorf("resolve classification: %w", err)
	}
	return underReview, bag, nil
}
