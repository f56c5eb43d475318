package resolvers

import (
	"fmt"
	"regexp"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
)

// ReleaseAsset is one downloadable file attached to a GitHub release.
type ReleaseAsset struct {
	Name               string
	BrowserDownloadURL string
	Size               int64
	Label              string
}

// allArches and allPlatforms back the negative filters in AssetResolver: every
// architecture/platform token except the host's own is used to exclude
// assets built for somebody else's target.
var allArches = []string{
	"armv5", "armv6", "armv7", "armhf", "i386", "i686", "arm32",
	"arm64", "s390", "ppc64", "x86_64",
}

var allPlatforms = []string{
	"Windows", "OSX", "Illumos", "Android", "iOS", "tvOS",
	"Solaris", "FreeBSD", "NetBSD", "WASI", "Browser", "MacCatalyst",
}

var allDistros = []hostfacts.DistroID{
	hostfacts.DistroUbuntu, hostfacts.DistroDebian, hostfacts.DistroAlpine,
	hostfacts.DistroRHEL, hostfacts.DistroFedora, hostfacts.DistroOpenSUSE,
	hostfacts.DistroRaspbian, hostfacts.DistroManjaro, hostfacts.DistroArch,
}

var (
	archToRegex = map[string]string{
		string(hostfacts.ArchX86_64): `x86[_-]?64|amd64`,
		string(hostfacts.ArchARM64):  `arm64|aarch64`,
		string(hostfacts.ArchARMv5):  `armv5`,
		string(hostfacts.ArchARMv6):  `armv6`,
		string(hostfacts.ArchARMv7):  `armv7`,
		string(hostfacts.ArchARMHF):  `armhf`,
		string(hostfacts.ArchARM32):  `arm32`,
		string(hostfacts.ArchI386):   `i386`,
		string(hostfacts.ArchI686):   `i686`,
		string(hostfacts.ArchPPC64):  `ppc64`,
		string(hostfacts.ArchS390):   `s390`,
	}
	archTokens = map[string]string{
		"armv5": "armv5", "armv6": "armv6", "armv7": "armv7", "armhf": "armhf",
		"i386": "i386", "i686": "i686", "arm32": "arm32", "arm64": "arm64|aarch64",
		"s390": "s390", "ppc64": "ppc64", "x86_64": "x86[_-]?64|amd64",
	}
	distroToRegex = map[hostfacts.DistroID]string{
		hostfacts.DistroUbuntu:   "ubuntu",
		hostfacts.DistroDebian:   "debian",
		hostfacts.DistroAlpine:   "alpine|musl",
		hostfacts.DistroRHEL:     "rhel|redhat|centos",
		hostfacts.DistroFedora:   "fedora",
		hostfacts.DistroOpenSUSE: "opensuse|suse",
		hostfacts.DistroRaspbian: "raspbian",
		hostfacts.DistroManjaro:  "manjaro",
		hostfacts.DistroArch:     "arch",
	}
)

// AssetResolver chooses exactly one release asset matching the running
// host's architecture, platform, bitness, and distro out of a set of
// heterogeneously-named candidates.
type AssetResolver struct {
	ByArch     bool
	ByPlatform bool
	ByMisc     bool
	ByBitness  bool
}

// NewAssetResolver returns an AssetResolver with every filter stage enabled,
// the default used unless the caller explicitly opts one out.
func NewAssetResolver() *AssetResolver {
	return &AssetResolver{ByArch: true, ByPlatform: true, ByMisc: true, ByBitness: true}
}

// Resolve runs the full filter pipeline against assets and returns the one
// surviving candidate.
func (r *AssetResolver) Resolve(assets []ReleaseAsset, binaryNames []string, assetRegex string, host hostfacts.HostFacts) (ReleaseAsset, error) {
	candidates := assets

	if assetRegex != "" {
		re, err := regexp.Compile(assetRegex)
		if err != nil {
			return ReleaseAsset{}, &nerrors.UsageError{Msg: "invalid asset regex: " + err.Error()}
		}
		matched := matchAssets(candidates, re, true)
		switch len(matched) {
		case 1:
			return matched[0], nil
		case 0:
			return ReleaseAsset{}, nerrors.NewAssetResolverError(false, "no asset matched --asset-regex "+assetRegex)
		default:
			candidates = matched // log-and-continue: narrowed, not decided
		}
	}

	candidates = r.applyNegativeFilters(candidates, host)
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return ReleaseAsset{}, nerrors.NewAssetResolverError(false, "no asset survived architecture/platform/bitness/misc exclusion")
	}

	candidates = r.applyPositiveFilters(candidates, binaryNames, host)

	if len(candidates) != 1 {
		tooMany := len(candidates) > 1
		return ReleaseAsset{}, nerrors.NewAssetResolverError(tooMany, fmt.Sprintf("%d assets remained after filtering", len(candidates)))
	}
	return candidates[0], nil
}

func (r *AssetResolver) applyNegativeFilters(assets []ReleaseAsset, host hostfacts.HostFacts) []ReleaseAsset {
	out := assets

	if r.ByArch {
		otherArches := otherTokens(archTokens, string(host.Arch))
		if re := alternation(otherArches); re != nil {
			out = matchAssets(out, re, false)
		}
	}
	if r.ByMisc {
		for _, pattern := range []string{
			`\.deb$|\.rpm$|\.pkg$|\.apk$|\.AppImage$|\.snap$`,
			`\.sig$|\.text$|\.txt$|[Cc]hecksums|sha256|sha512|\.sha1$|\.md5$`,
			`\.pub$|\.pem$|\.crt$|\.asc$|pivkey|pkcs11key`,
			`\.json$|\.sbom$|\.blockmap$`,
		} {
			out = matchAssets(out, regexp.MustCompile(pattern), false)
		}
	}
	if r.ByPlatform {
		otherPlatforms := without(allPlatforms, "Linux")
		out = matchAssets(out, alternation(otherPlatforms), false)
	}
	if r.ByBitness {
		opposite := `32.?bit|i386|i686`
		if host.Bits == hostfacts.Bitness32 {
			opposite = `64.?bit|x86[_-]?64|amd64`
		}
		out = matchAssets(out, regexp.MustCompile(`(?i)`+opposite), false)
	}
	return out
}

func (r *AssetResolver) applyPositiveFilters(assets []ReleaseAsset, binaryNames []string, host hostfacts.HostFacts) []ReleaseAsset {
	candidates := assets

	for _, name := range binaryNames {
		candidates = applyIfSurvives(candidates, regexp.MustCompile(regexp.QuoteMeta(name)))
	}

	if r.ByArch {
		if pattern, ok := archToRegex[string(host.Arch)]; ok {
			candidates = applyIfSurvives(candidates, regexp.MustCompile("(?i)"+pattern))
		}
	}
	if r.ByPlatform {
		candidates = applyIfSurvives(candidates, regexp.MustCompile(`(?i)linux`))
	}

	if rePattern, ok := distroToRegex[host.ReleaseID]; ok {
		candidates = applyIfSurvives(candidates, regexp.MustCompile("(?i)"+rePattern))
	}

	candidates = applyIfSurvives(candidates, regexp.MustCompile(`(?i)static`))

	if rePattern, ok := distroToRegex[host.IDLike]; ok {
		candidates = applyIfSurvives(candidates, regexp.MustCompile("(?i)"+rePattern))
	}

	if host.Arch == hostfacts.ArchARM64 {
		candidates = applyIfSurvives(candidates, regexp.MustCompile(`-ARM-?|-arm-`))
	}

	for _, d := range allDistros {
		if d == host.ReleaseID || d == host.IDLike {
			continue
		}
		if pattern, ok := distroToRegex[d]; ok {
			candidates = applyIfSurvivesNegative(candidates, regexp.MustCompile("(?i)"+pattern))
		}
	}

	return candidates
}

func matchAssets(assets []ReleaseAsset, re *regexp.Regexp, keepMatching bool) []ReleaseAsset {
	var out []ReleaseAsset
	for _, a := range assets {
		if re.MatchString(a.Name) == keepMatching {
			out = append(out, a)
		}
	}
	return out
}

// applyIfSurvives keeps only assets matching re, unless doing so would leave
// nothing, in which case the filter is skipped and the input is returned
// unchanged.
func applyIfSurvives(assets []ReleaseAsset, re *regexp.Regexp) []ReleaseAsset {
	filtered := matchAssets(assets, re, true)
	if len(filtered) == 0 {
		return assets
	}
	return filtered
}

// applyIfSurvivesNegative is applyIfSurvives for the "exclude other distros"
// positive-phase step: survivors are assets that do NOT match re.
func applyIfSurvivesNegative(assets []ReleaseAsset, re *regexp.Regexp) []ReleaseAsset {
	filtered := matchAssets(assets, re, false)
	if len(filtered) == 0 {
		return assets
	}
	return filtered
}

func otherTokens(tokens map[string]string, except string) []string {
	var out []string
	for k, v := range tokens {
		if k == except {
			continue
		}
		out = append(out, v)
	}
	return out
}

func without(ss []string, except string) []string {
	var out []string
	for _, s := range ss {
		if s == except {
			continue
		}
		out = append(out, s)
	}
	return out
}

func alternation(patterns []string) *regexp.Regexp {
	if len(patterns) == 0 {
		return regexp.MustCompile(`$^`) // matches nothing
	}
	joined := "(?i)("
	for i, p := range patterns {
		if i > 0 {
			joined += "|"
		}
		joined += p
	}
	joined += ")"
	return regexp.MustCompile(joined)
}
