package auth

import (
	"sort"
	"testing"
)

func TestPermissionSetCan(t *testing.T) {
	set := NewPermissionSet(PermApproveSpots, "view staff spots")

	tests := []struct {
		perm string
		want bool
	}{
		{PermApproveSpots, true},
		{"view staff spots", true},
		{PermMakeDesignatedSpots, false},
		// The empty permission names an open classification; everyone
		// holds it.
		{"", true},
	}
	for _, tt := range tests {
		if got := set.Can(tt.perm); got != tt.want {
			t.Errorf("Can(%q) = %v, want %v", tt.perm, got, tt.want)
		}
	}
}

func TestNewPermissionSetIgnoresEmptyNames(t *testing.T) {
	set := NewPermissionSet("", PermApproveSpots, "")
	if len(set) != 1 {
		t.Errorf("set has %d entries, want 1", len(set))
	}
}

func TestPermissionSetList(t *testing.T) {
	set := NewPermissionSet(PermApproveSpots, PermViewUnapprovedSpots)
	got := set.List()
	sort.Strings(got)
	want := []string{PermApproveSpots, PermViewUnapprovedSpots}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNilPrincipalHoldsNothing(t *testing.T) {
	var p *Principal
	if p.Can("") {
		t.Error("nil principal should not hold the empty permission")
	}
	if p.Can(PermApproveSpots) {
		t.Error("nil principal should not hold named permissions")
	}
}

func TestPrincipalCan(t *testing.T) {
	p := &Principal{ID: "u", Perms: NewPermissionSet(PermApproveSpots)}
	if !p.Can(PermApproveSpots) {
		t.Error("granted permission should be held")
	}
	if p.Can(PermCreateDesignatedSpots) {
		t.Error("ungranted permission should not be held")
	}
	if !p.Can("") {
		t.Error("authenticated principal holds the empty permission")
	}
}
