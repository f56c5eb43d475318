package ociref

import "testing"

func TestParseExplicitVersion(t *testing.T) {
	r := Parse("ghcr.io/devcontainers/features/go:1")
	if r.Registry != "ghcr.io" {
		t.Fatalf("Registry = %q, want ghcr.io", r.Registry)
	}
	if r.Path != "devcontainers/features/go" {
		t.Fatalf("Path = %q", r.Path)
	}
	if r.Version != "1" {
		t.Fatalf("Version = %q, want 1", r.Version)
	}
	if r.Owner() != "devcontainers" {
		t.Fatalf("Owner() = %q", r.Owner())
	}
	if r.ID() != "go" {
		t.Fatalf("ID() = %q", r.ID())
	}
}

func TestParseDefaultsToLatest(t *testing.T) {
	r := Parse("ghcr.io/devcontainers/features/go")
	if r.Version != "latest" {
		t.Fatalf("Version = %q, want latest", r.Version)
	}
}

func TestParseRoundTrip(t *testing.T) {
	raw := "ghcr.io/owner/name:2.0.1"
	r := Parse(raw)
	if r.String() != raw {
		t.Fatalf("String() = %q, want %q", r.String(), raw)
	}
}

func TestParseDoesNotMistakeRegistryPortForTag(t *testing.T) {
	r := Parse("localhost:5000/owner/name")
	if r.Registry != "localhost:5000" {
		t.Fatalf("Registry = %q, want localhost:5000", r.Registry)
	}
	if r.Version != "latest" {
		t.Fatalf("Version = %q, want latest", r.Version)
	}
}
