package spot

import (
	"context"
	"reflect"
	"testing"

	"github.com/rit-atlas/atlas/internal/auth"
)

func TestAuthorizeSubmission(t *testing.T) {
	crowdsource := &Category{ID: 1, Name: "Campus", Crowdsource: true}
	designated := &Category{ID: 2, Name: "Designated", Crowdsource: false}

	tests := []struct {
		name      string
		category  *Category
		principal *auth.Principal
		wantErr   bool
	}{
		{
			name:      "anyone may submit to a crowdsource category",
			category:  crowdsource,
			principal: &auth.Principal{ID: "u", Perms: auth.NewPermissionSet()},
		},
		{
			name:      "closed category rejects principals without permission",
			category:  designated,
			principal: &auth.Principal{ID: "u", Perms: auth.NewPermissionSet()},
			wantErr:   true,
		},
		{
			name:      "closed category admits permission holders",
			category:  designated,
			principal: &auth.Principal{ID: "u", Perms: auth.NewPermissionSet(auth.PermMakeDesignatedSpots)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := AuthorizeSubmission(tt.principal, tt.category)
			if tt.wantErr {
				want := []string{"The category you specified does not allow crowdsourced spots."}
				if !reflect.DeepEqual(bag[KeyPermission], want) {
					t.Errorf("permission errors = %v, want %v", bag[KeyPermission], want)
				}
				return
			}
			if !bag.Empty() {
				t.Errorf("unexpected errors: %v", bag)
			}
		})
	}
}

func TestResolveClassificationApproverKeepsRequested(t *testing.T) {
	taxonomy := NewMemoryTaxonomyRepository()
	requested := &Classification{ID: 5, Name: "Staff Only", CategoryID: 1}
	principal := &auth.Principal{ID: "u", Perms: auth.NewPermissionSet(auth.PermApproveSpots)}

	resolved, bag, err := ResolveClassification(context.Background(), taxonomy, principal, requested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bag.Empty() {
		t.Fatalf("unexpected errors: %v", bag)
	}
	if resolved != requested {
		t.Errorf("resolved = %v, want the requested classification", resolved)
	}
}

func TestResolveClassificationDowngradesToUnderReview(t *testing.T) {
	taxonomy := NewMemoryTaxonomyRepository()
	underReviewID := int64(10)
	taxonomy.PutClassification(&Classification{ID: underReviewID, Name: "Under Review", Kind: ClassificationKindSystem, CategoryID: 1})
	taxonomy.PutClassification(&Classification{ID: 11, Name: "Staff Only", CategoryID: 1})
	if err := taxonomy.SaveCategory(context.Background(), &Category{
		ID: 1, Name: "Campus", Crowdsource: true,
		UnderReviewClassificationID: &underReviewID,
	}); err != nil {
		t.Fatalf("save category: %v", err)
	}

	requested := &Classification{ID: 11, Name: "Staff Only", CategoryID: 1}
	principal := &auth.Principal{ID: "u", Perms: auth.NewPermissionSet()}

	resolved, bag, err := ResolveClassification(context.Background(), taxonomy, principal, requested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bag.Empty() {
		t.Fatalf("unexpected errors: %v", bag)
	}
	if resolved == nil || resolved.ID != underReviewID {
		t.Errorf("resolved = %v, want under-review classification %d", resolved, underReviewID)
	}
}

func TestResolveClassificationMissingUnderReviewReference(t *testing.T) {
	taxonomy := NewMemoryTaxonomyRepository()
	if err := taxonomy.SaveCategory(context.Background(), &Category{ID: 1, Name: "Campus", Crowdsource: true}); err != nil {
		t.Fatalf("save category: %v", err)
	}

	requested := &Classification{ID: 11, Name: "Staff Only", CategoryID: 1}
	principal := &auth.Principal{ID: "u", Perms: auth.NewPermissionSet()}

	resolved, bag, err := ResolveClassification(context.Background(), taxonomy, principal, requested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Under review classification does not exist for the given category."}
	if !reflect.DeepEqual(bag[KeyInternal], want) {
		t.Errorf("internal errors = %v, want %v", bag[KeyInternal], want)
	}
	if resolved != nil {
		t.Errorf("resolved = %v, want nil", resolved)
	}
}

func TestSaveCategoryRejectsForeignReference(t *testing.T) {
	taxonomy := NewMemoryTaxonomyRepository()
	taxonomy.PutClassification(&Classification{ID: 20, Name: "Public", Kind: ClassificationKindSystem, CategoryID: 2})

	foreign := int64(20)
	err := taxonomy.SaveCategory(context.Background(), &Category{
		ID: 1, Name: "Campus",
		PublicClassificationID: &foreign,
	})
	if err != ErrInvalidSystemClassification {
		t.Errorf("err = %v, want ErrInvalidSystemClassification", err)
	}

	dangling := int64(99)
	err = taxonomy.SaveCategory(context.Background(), &Category{
		ID: 1, Name: "Campus",
		UnderReviewClassificationID: &dangling,
	})
	if err != ErrInvalidSystemClassification {
		t.Errorf("err = %v, want ErrInvalidSystemClassification", err)
	}
}
