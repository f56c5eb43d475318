package resolvers

import (
	"testing"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
)

func amd64Linux() hostfacts.HostFacts {
	return hostfacts.HostFacts{
		Arch:      hostfacts.ArchX86_64,
		Bits:      hostfacts.Bitness64,
		ReleaseID: hostfacts.DistroDebian,
		IDLike:    hostfacts.DistroDebian,
	}
}

func assetNames(names ...string) []ReleaseAsset {
	out := make([]ReleaseAsset, len(names))
	for i, n := range names {
		out[i] = ReleaseAsset{Name: n}
	}
	return out
}

func TestAssetResolverPicksArchMatch(t *testing.T) {
	assets := assetNames(
		"kubectx_v0.9.5_linux_x86_64.tar.gz",
		"kubectx_v0.9.5_linux_arm64.tar.gz",
		"kubectx_v0.9.5_darwin_x86_64.tar.gz",
	)
	r := NewAssetResolver()
	got, err := r.Resolve(assets, []string{"kubectx"}, "", amd64Linux())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name != "kubectx_v0.9.5_linux_x86_64.tar.gz" {
		t.Fatalf("Resolve() = %q", got.Name)
	}
}

func TestAssetResolverExcludesChecksumsAndPackages(t *testing.T) {
	assets := assetNames(
		"tool_linux_amd64.tar.gz",
		"tool_linux_amd64.tar.gz.sha256",
		"tool_amd64.deb",
	)
	r := NewAssetResolver()
	got, err := r.Resolve(assets, []string{"tool"}, "", amd64Linux())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name != "tool_linux_amd64.tar.gz" {
		t.Fatalf("Resolve() = %q", got.Name)
	}
}

func TestAssetResolverFailsWithNoSurvivors(t *testing.T) {
	// Both assets are excluded by the negative platform filter ("Windows"
	// and "OSX" are both in the excluded-platform set), leaving nothing.
	assets := assetNames("tool_windows_amd64.zip", "tool_osx_amd64.tar.gz")
	r := NewAssetResolver()
	if _, err := r.Resolve(assets, []string{"tool"}, "", amd64Linux()); err == nil {
		t.Fatalf("expected an error when no asset matches the host")
	}
}

func TestAssetResolverSingleSurvivorAfterNegativePhaseShortCircuits(t *testing.T) {
	// A "darwin"-named asset isn't covered by the negative platform set (it
	// lists "OSX", not "Darwin"), so if it's the only asset left standing
	// after negative filtering it is returned without the positive phase
	// ever running - preserving the upstream resolver's documented
	// short-circuit at exactly one survivor.
	assets := assetNames("tool_darwin_amd64.tar.gz")
	r := NewAssetResolver()
	got, err := r.Resolve(assets, []string{"tool"}, "", amd64Linux())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name != "tool_darwin_amd64.tar.gz" {
		t.Fatalf("Resolve() = %q", got.Name)
	}
}

func TestAssetResolverUserRegexSingleMatch(t *testing.T) {
	assets := assetNames("tool_linux_amd64.tar.gz", "tool_linux_arm64.tar.gz")
	r := NewAssetResolver()
	got, err := r.Resolve(assets, []string{"tool"}, `amd64`, amd64Linux())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name != "tool_linux_amd64.tar.gz" {
		t.Fatalf("Resolve() = %q", got.Name)
	}
}

func TestAssetResolverPrefersHostDistro(t *testing.T) {
	assets := assetNames(
		"tool_linux_amd64_debian.tar.gz",
		"tool_linux_amd64_fedora.tar.gz",
	)
	r := NewAssetResolver()
	got, err := r.Resolve(assets, []string{"tool"}, "", amd64Linux())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name != "tool_linux_amd64_debian.tar.gz" {
		t.Fatalf("Resolve() = %q, want the debian-suffixed asset", got.Name)
	}
}
