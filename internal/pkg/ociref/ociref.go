// Package ociref parses the "oci-ref" strings used to name a devcontainer
// feature or any other OCI artifact nanolayer pulls: a registry host, a
// slash-separated path, and an optional ":version" tag, e.g.
// "ghcr.io/devcontainers/features/go:1".
package ociref

import "strings"

// Ref is a parsed OCI artifact reference.
type Ref struct {
	// Registry is the host (and optional port), e.g. "ghcr.io".
	Registry string
	// Path is the slash-separated path after the registry, without the
	// leading slash and without the version suffix, e.g.
	// "devcontainers/features/go".
	Path string
	// Version is the tag after the last ":" in the original path segment,
	// or "latest" if none was given.
	Version string
}

// Owner is the first path segment, conventionally the org/user that
// publishes the artifact.
func (r Ref) Owner() string {
	parts := strings.Split(r.Path, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// ID is the final path segment: the artifact's own name.
func (r Ref) ID() string {
	parts := strings.Split(r.Path, "/")
	return parts[len(parts)-1]
}

// String reconstructs the canonical "registry/path:version" form.
func (r Ref) String() string {
	return r.Registry + "/" + r.Path + ":" + r.Version
}

// Parse splits raw into registry, path and version. A version is only
// recognized if a ":" appears after the last "/": this disambiguates a
// registry port ("localhost:5000/foo") from a tag ("ghcr.io/foo:1"), since a
// bare host with a port and no path has no slash for the tag colon to follow.
func Parse(raw string) Ref {
	registry, rest, _ := strings.Cut(raw, "/")

	version := "latest"
	lastSlash := strings.LastIndex(rest, "/")
	if colon := strings.LastIndex(rest, ":"); colon > lastSlash {
		version = rest[colon+1:]
		rest = rest[:colon]
	}

	return Ref{Registry: registry, Path: rest, Version: version}
}
