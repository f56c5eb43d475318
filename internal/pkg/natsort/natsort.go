// Package natsort orders release tags the way a human would rather than by
// strict SemVer: "v2" sorts after "v10" under naive string comparison but
// must sort before it, and many projects tag releases that aren't valid
// SemVer at all ("release-7", "2023.11.01"). Tags that do parse as SemVer
// (via github.com/blang/semver/v4) are compared as versions; everything else
// falls back to a natural, digit-chunk-aware string comparison so numeric
// runs compare numerically regardless of width or leading zeros.
package natsort

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
)

var digitsRe = regexp.MustCompile(`\d+|\D+`)

// Less reports whether tag a should sort before tag b.
func Less(a, b string) bool {
	va, aOK := parseSemverLoose(a)
	vb, bOK := parseSemverLoose(b)
	if aOK && bOK {
		return va.LT(vb)
	}
	return naturalLess(a, b)
}

// SortDescending sorts tags from newest to oldest in place using Less.
func SortDescending(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool { return Less(tags[j], tags[i]) })
}

// Latest returns the newest tag in tags, or "" if tags is empty.
func Latest(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	best := tags[0]
	for _, t := range tags[1:] {
		if Less(best, t) {
			best = t
		}
	}
	return best
}

// parseSemverLoose strips a single leading "v" (the overwhelmingly common
// tag convention, e.g. "v1.2.3") before handing off to semver.Parse, which
// itself requires strict dotted-triple form.
func parseSemverLoose(tag string) (semver.Version, bool) {
	trimmed := strings.TrimPrefix(tag, "v")
	v, err := semver.Parse(trimmed)
	if err != nil {
		return semver.Version{}, false
	}
	return v, true
}

// naturalLess compares two strings chunk-by-chunk, treating maximal runs of
// digits as numbers and everything else as literal text, so "item9" sorts
// before "item10".
func naturalLess(a, b string) bool {
	achunks := digitsRe.FindAllString(a, -1)
	bchunks := digitsRe.FindAllString(b, -1)

	for i := 0; i < len(achunks) && i < len(bchunks); i++ {
		ac, bc := achunks[i], bchunks[i]
		an, aErr := strconv.Atoi(ac)
		bn, bErr := strconv.Atoi(bc)
		if aErr == nil && bErr == nil {
			if an != bn {
				return an < bn
			}
			continue
		}
		if ac != bc {
			return ac < bc
		}
	}
	return len(achunks) < len(bchunks)
}
