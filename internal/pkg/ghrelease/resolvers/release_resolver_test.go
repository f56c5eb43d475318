package resolvers

import (
	"regexp"
	"testing"
)

func TestTagRefRegexExtractsTagName(t *testing.T) {
	m := tagRefRe.FindStringSubmatch("a1b2c3\trefs/tags/v1.2.3")
	if m == nil || m[1] != "v1.2.3" {
		t.Fatalf("tagRefRe match = %v", m)
	}
}

func TestFilterMatching(t *testing.T) {
	tags := []string{"v1.0.0", "beta-1", "v2.0.0"}
	re := regexp.MustCompile(`^v\d+\.\d+\.\d+$`)
	got := filterMatching(tags, re)
	want := []string{"v1.0.0", "v2.0.0"}
	if len(got) != len(want) {
		t.Fatalf("filterMatching() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("filterMatching()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContains(t *testing.T) {
	if !contains([]string{"a", "b"}, "b") {
		t.Fatalf("expected contains to find b")
	}
	if contains([]string{"a", "b"}, "c") {
		t.Fatalf("expected contains to not find c")
	}
}

func TestIsAlnum(t *testing.T) {
	if !isAlnum('a') || !isAlnum('9') {
		t.Fatalf("expected letters and digits to be alnum")
	}
	if isAlnum('-') || isAlnum('.') {
		t.Fatalf("expected punctuation to not be alnum")
	}
}
