package spot

import (
	"testing"

	"github.com/rit-atlas/atlas/internal/auth"
)

const (
	openClassificationID   = int64(1)
	gatedClassificationID  = int64(2)
	gatedViewPermission    = "view staff spots"
	gatedCreatePermission  = "assign staff classification"
	secondCreatePermission = "assign vip classification"
)

func testClassifications() map[int64]*Classification {
	return map[int64]*Classification{
		openClassificationID: {
			ID:         openClassificationID,
			Name:       "Public",
			Kind:       ClassificationKindSystem,
			CategoryID: 1,
		},
		gatedClassificationID: {
			ID:             gatedClassificationID,
			Name:           "Staff Only",
			Kind:           ClassificationKindStandard,
			ViewPermission: gatedViewPermission,
			CategoryID:     1,
		},
	}
}

// TestFilterVisible enumerates the full visibility rule:
// {approved, unapproved} x {owner, non-owner} x {holds permission,
// lacks permission} x {anonymous}.
func TestFilterVisible(t *testing.T) {
	owner := "user-1"
	other := "user-2"

	tests := []struct {
		name             string
		approved         bool
		classificationID int64
		principal        *auth.Principal
		want             bool
	}{
		{
			name:             "anonymous sees approved open spot",
			approved:         true,
			classificationID: openClassificationID,
			want:             true,
		},
		{
			name:             "anonymous does not see approved gated spot",
			approved:         true,
			classificationID: gatedClassificationID,
			want:             false,
		},
		{
			name:             "anonymous does not see unapproved spot",
			approved:         false,
			classificationID: openClassificationID,
			want:             false,
		},
		{
			name:             "non-owner sees approved open spot",
			approved:         true,
			classificationID: openClassificationID,
			principal:        &auth.Principal{ID: other, Perms: auth.NewPermissionSet()},
			want:             true,
		},
		{
			name:             "non-owner without permission does not see gated spot",
			approved:         true,
			classificationID: gatedClassificationID,
			principal:        &auth.Principal{ID: other, Perms: auth.NewPermissionSet()},
			want:             false,
		},
		{
			name:             "non-owner with permission sees gated spot",
			approved:         true,
			classificationID: gatedClassificationID,
			principal:        &auth.Principal{ID: other, Perms: auth.NewPermissionSet(gatedViewPermission)},
			want:             true,
		},
		{
			name:             "owner sees own unapproved spot",
			approved:         false,
			classificationID: openClassificationID,
			principal:        &auth.Principal{ID: owner, Perms: auth.NewPermissionSet()},
			want:             true,
		},
		{
			name:             "owner sees own gated spot without permission",
			approved:         true,
			classificationID: gatedClassificationID,
			principal:        &auth.Principal{ID: owner, Perms: auth.NewPermissionSet()},
			want:             true,
		},
		{
			name:             "reviewer sees unapproved spot of others",
			approved:         false,
			classificationID: gatedClassificationID,
			principal:        &auth.Principal{ID: other, Perms: auth.NewPermissionSet(auth.PermViewUnapprovedSpots)},
			want:             true,
		},
		{
			name:             "non-owner without review permission does not see unapproved spot",
			approved:         false,
			classificationID: openClassificationID,
			principal:        &auth.Principal{ID: other, Perms: auth.NewPermissionSet()},
			want:             false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spots := []*Spot{{
				ID:               1,
				Approved:         tt.approved,
				UserID:           owner,
				ClassificationID: tt.classificationID,
			}}
			visible := FilterVisible(spots, testClassifications(), tt.principal)
			if got := len(visible) == 1; got != tt.want {
				t.Errorf("visible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterVisiblePreservesOrder(t *testing.T) {
	spots := []*Spot{
		{ID: 3, Approved: true, UserID: "a", ClassificationID: openClassificationID},
		{ID: 1, Approved: false, UserID: "a", ClassificationID: openClassificationID},
		{ID: 2, Approved: true, UserID: "b", ClassificationID: openClassificationID},
	}
	visible := FilterVisible(spots, testClassifications(), nil)
	if len(visible) != 2 || visible[0].ID != 3 || visible[1].ID != 2 {
		t.Errorf("unexpected order: %v", visible)
	}
}

func TestFilterVisibleMissingClassificationTreatedAsOpen(t *testing.T) {
	spots := []*Spot{{ID: 1, Approved: true, UserID: "a", ClassificationID: 99}}
	visible := FilterVisible(spots, testClassifications(), nil)
	if len(visible) != 1 {
		t.Errorf("spot with unknown classification should fall back to open visibility, got %d spots", len(visible))
	}
}

func TestFilterCreatable(t *testing.T) {
	classifications := []*Classification{
		{ID: 1, Name: "Public"},
		{ID: 2, Name: "Staff Only", CreatePermission: gatedCreatePermission},
		{ID: 3, Name: "VIP", CreatePermission: secondCreatePermission},
	}

	t.Run("nil principal gets nothing", func(t *testing.T) {
		if got := FilterCreatable(classifications, nil); len(got) != 0 {
			t.Errorf("expected empty result, got %d", len(got))
		}
	})

	t.Run("keeps open and permitted classifications", func(t *testing.T) {
		p := &auth.Principal{ID: "u", Perms: auth.NewPermissionSet(gatedCreatePermission)}
		got := FilterCreatable(classifications, p)
		if len(got) != 2 {
			t.Fatalf("expected 2 classifications, got %d", len(got))
		}
		if got[0].ID != 1 || got[1].ID != 2 {
			t.Errorf("unexpected classifications: %v, %v", got[0], got[1])
		}
	})
}
