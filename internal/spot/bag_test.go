package spot

import (
	"reflect"
	"testing"
)

func TestBagAddAndEmpty(t *testing.T) {
	bag := NewBag()
	if !bag.Empty() {
		t.Error("new bag should be empty")
	}

	bag.Add(KeyPermission, "nope")
	if bag.Empty() {
		t.Error("bag with a message should not be empty")
	}
	if got := bag[KeyPermission]; len(got) != 1 || got[0] != "nope" {
		t.Errorf("unexpected messages: %v", got)
	}
}

func TestBagMergeCombinesAllKeys(t *testing.T) {
	a := NewBag()
	a.Add("lat", "The lat field is required.")
	a.Add(KeyDescriptors, "first")

	b := NewBag()
	b.Add(KeyDescriptors, "second")
	b.Add(KeyInvalid, "bad reference")

	a.Merge(b)

	want := Bag{
		"lat":          {"The lat field is required."},
		KeyDescriptors: {"first", "second"},
		KeyInvalid:     {"bad reference"},
	}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("merged bag = %v, want %v", a, want)
	}
}

func TestBagMergeEmptyIsNoop(t *testing.T) {
	a := NewBag()
	a.Add("lng", "The lng field is required.")
	a.Merge(NewBag())

	if len(a) != 1 || len(a["lng"]) != 1 {
		t.Errorf("merge with empty bag changed contents: %v", a)
	}
}
