package natsort

import "testing"

func TestLessSemverTags(t *testing.T) {
	if !Less("v1.2.9", "v1.2.10") {
		t.Fatalf("expected v1.2.9 < v1.2.10")
	}
	if Less("v2.0.0", "v1.9.9") {
		t.Fatalf("expected v2.0.0 to not sort before v1.9.9")
	}
}

func TestLessNonSemverFallsBackToNatural(t *testing.T) {
	if !Less("release-9", "release-10") {
		t.Fatalf("expected release-9 < release-10 under natural order")
	}
	if !Less("item2", "item10") {
		t.Fatalf("expected item2 < item10")
	}
}

func TestLatest(t *testing.T) {
	tags := []string{"v1.0.0", "v1.2.10", "v1.2.9", "v0.9.0"}
	if got := Latest(tags); got != "v1.2.10" {
		t.Fatalf("Latest() = %q, want v1.2.10", got)
	}
}

func TestSortDescending(t *testing.T) {
	tags := []string{"v1.0.0", "v2.0.0", "v1.5.0"}
	SortDescending(tags)
	want := []string{"v2.0.0", "v1.5.0", "v1.0.0"}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("SortDescending() = %v, want %v", tags, want)
		}
	}
}
