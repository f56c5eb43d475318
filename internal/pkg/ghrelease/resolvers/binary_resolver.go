package resolvers

import (
	"path"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/archive"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
)

// BinaryResolver locates, within an opened archive, the member that
// corresponds to each requested binary name.
type BinaryResolver struct{}

// NewBinaryResolver returns a BinaryResolver. It holds no state; the
// constructor exists for symmetry with ReleaseResolver/AssetResolver.
func NewBinaryResolver() *BinaryResolver {
	return &BinaryResolver{}
}

// Resolve maps each of binaryNames to the single archive member that is it.
// The zero-ambiguity single-file case accepts any member name (a release
// that ships one renamed binary with one requested name); otherwise members
// are matched by basename, with executable-bit presence used to break ties
// among files that merely share a basename (e.g. a binary and a stale,
// non-executable copy of it in another directory).
func (r *BinaryResolver) Resolve(a archive.Archive, binaryNames []string) (map[string]string, error) {
	fileMembers := fileMembersOnly(a)

	if len(fileMembers) == 1 {
		if len(binaryNames) == 1 {
			return map[string]string{binaryNames[0]: fileMembers[0].Name}, nil
		}
		return nil, nerrors.NewBinaryResolverError(false, "archive has a single file member but multiple binary names were requested")
	}

	result := make(map[string]string, len(binaryNames))
	for _, name := range binaryNames {
		var matches []archive.Member
		for _, m := range fileMembers {
			if path.Base(m.Name) == name {
				matches = append(matches, m)
			}
		}
		switch len(matches) {
		case 0:
			return nil, nerrors.NewBinaryResolverError(false, "no archive member named "+name)
		case 1:
			result[name] = matches[0].Name
		default:
			executable := filterExecutable(matches)
			if len(executable) != 1 {
				return nil, nerrors.NewBinaryResolverError(true, "ambiguous archive members named "+name)
			}
			result[name] = executable[0].Name
		}
	}
	return result, nil
}

func fileMembersOnly(a archive.Archive) []archive.Member {
	var out []archive.Member
	for _, m := range a.Members() {
		if !m.Mode.IsDir() {
			out = append(out, m)
		}
	}
	return out
}

func filterExecutable(members []archive.Member) []archive.Member {
	var out []archive.Member
	for _, m := range members {
		if m.Mode&0o111 != 0 {
			out = append(out, m)
		}
	}
	return out
}
