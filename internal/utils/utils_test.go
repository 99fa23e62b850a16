package utils

import "testing"

func TestSortedUnique(t *testing.T) {
	got := SortedUnique([]string{"+2", "", "+1", "+2", "+10"})
	want := []string{"+1", "+10", "+2"}
	if !AreSlicesEqual(got, want) {
		t.Fatalf("SortedUnique()=%v want %v", got, want)
	}
}

func TestAreSlicesEqual(t *testing.T) {
	if AreSlicesEqual([]string{"a"}, []string{"a", "b"}) {
		t.Fatalf("slices of different length reported equal")
	}
	if !AreSlicesEqual(nil, []string{}) {
		t.Fatalf("nil and empty slices should be equal")
	}
}
