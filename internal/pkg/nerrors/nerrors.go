// Package nerrors defines nanolayer's error taxonomy. Each installer returns
// one of these types (or wraps one with github.com/pkg/errors) so the CLI's
// top-level boundary can map failures to a stable family when deciding how
// to report them and what exit code to use.
package nerrors

import "fmt"

// UsageError signals bad flags or a missing required argument.
type UsageError struct{ Msg string }

func (e *UsageError) Error() string { return e.Msg }

// PermissionDenied signals a non-root invocation of a privileged operation.
type PermissionDenied struct{ Msg string }

func (e *PermissionDenied) Error() string { return e.Msg }

// HostUnsupported signals a non-Linux host, an unsupported architecture, or
// a distro that doesn't match the tooling being invoked (e.g. apt on a
// non-debian-like host).
type HostUnsupported struct{ Msg string }

func (e *HostUnsupported) Error() string { return e.Msg }

// ResolveError is the family for release/asset/binary resolution failures.
type ResolveError struct {
	Kind string // "ReleaseNotFound" | "AssetResolverError:none" | "AssetResolverError:tooMany" | "BinaryResolverError:none" | "BinaryResolverError:tooMany"
	Msg  string
}

func (e *ResolveError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func NewReleaseNotFound(msg string) *ResolveError {
	return &ResolveError{Kind: "ReleaseNotFound", Msg: msg}
}

func NewAssetResolverError(tooMany bool, msg string) *ResolveError {
	kind := "AssetResolverError:none"
	if tooMany {
		kind = "AssetResolverError:tooMany"
	}
	return &ResolveError{Kind: kind, Msg: msg}
}

func NewBinaryResolverError(tooMany bool, msg string) *ResolveError {
	kind := "BinaryResolverError:none"
	if tooMany {
		kind = "BinaryResolverError:tooMany"
	}
	return &ResolveError{Kind: kind, Msg: msg}
}

// RegistryError is the family for OCI registry network, auth, and integrity
// failures.
type RegistryError struct {
	Kind string // "Network" | "Auth" | "HashMismatch" | "MissingLayer"
	Msg  string
}

func (e *RegistryError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func NewHashMismatch(expected, actual string) *RegistryError {
	return &RegistryError{Kind: "HashMismatch", Msg: fmt.Sprintf("expected %s, got %s", expected, actual)}
}

// IOError is the family for archive/filesystem failures: malformed archive,
// pre-existing target without force, chmod/symlink failure.
type IOError struct{ Msg string }

func (e *IOError) Error() string { return e.Msg }

// CommandFailed signals that a child command invoked by Invoker exited
// non-zero while raiseOnFailure was set.
type CommandFailed struct {
	Command    string
	ReturnCode int
}

func (e *CommandFailed) Error() string {
	return fmt.Sprintf("command failed with exit code %d: %s", e.ReturnCode, e.Command)
}
