// Package ghrelease implements the top-level GitHub-release install flow:
// resolve a tag, pick an asset, download it, classify it, and place binaries
// (and, for library-bundle archives, a directory plus symlinks) onto the
// filesystem with the right permissions.
package ghrelease

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/archive"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/ghrelease/resolvers"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
	"github.com/devcontainers-contrib/nanolayer/pkg/sylog"
)

// InstallPlan describes one gh-release install invocation.
type InstallPlan struct {
	Repo         string
	BinaryNames  []string
	LibName      string
	AskedVersion string // "latest" or a tag
	AssetRegex   string
	TagRegex     string
	BinLocation  string
	LibLocation  string
	Force        bool
	// ArchOverride, if non-empty, is used instead of the probed host
	// architecture - the CLI's --arch flag.
	ArchOverride hostfacts.Architecture
}

const (
	defaultBinLocation = "/usr/local/bin"
	defaultLibLocation = "/usr/local/lib"
)

// Installer ties ReleaseResolver, AssetResolver, BinaryResolver and the
// GitHub asset HTTP download together into one install.
type Installer struct {
	HTTPClient      *http.Client
	ReleaseResolver *resolvers.ReleaseResolver
	AssetResolver   *resolvers.AssetResolver
	BinaryResolver  *resolvers.BinaryResolver
}

// NewInstaller returns an Installer wired with default resolvers.
func NewInstaller() *Installer {
	return &Installer{
		HTTPClient:      http.DefaultClient,
		ReleaseResolver: resolvers.NewReleaseResolver(),
		AssetResolver:   resolvers.NewAssetResolver(),
		BinaryResolver:  resolvers.NewBinaryResolver(),
	}
}

// Install runs the full flow described by plan.
func (in *Installer) Install(ctx context.Context, plan InstallPlan) error {
	if err := normalize(&plan); err != nil {
		return err
	}

	host, err := hostfacts.Probe()
	if err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}
	if host.KernelName != "" && host.KernelName != "Linux" {
		return &nerrors.HostUnsupported{Msg: "gh-release installs are only supported on Linux, host reports " + host.KernelName}
	}
	if plan.ArchOverride != "" {
		host.Arch = plan.ArchOverride
	}

	if !host.IsRoot {
		return &nerrors.PermissionDenied{Msg: "install gh-release requires root"}
	}

	if err := os.MkdirAll(plan.BinLocation, 0o755); err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}
	if err := os.MkdirAll(plan.LibLocation, 0o755); err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}

	if !plan.Force {
		for _, name := range plan.BinaryNames {
			target := filepath.Join(plan.BinLocation, name)
			if _, err := os.Lstat(target); err == nil {
				return &nerrors.IOError{Msg: target + " already exists; pass --force to overwrite"}
			}
		}
	}

	tag, err := in.ReleaseResolver.Resolve(ctx, plan.Repo, plan.AskedVersion, plan.TagRegex, false)
	if err != nil {
		return err
	}
	sylog.Verbosef("resolved %s to tag %s", plan.Repo, tag)

	assets, err := in.listAssets(ctx, plan.Repo, tag)
	if err != nil {
		var resolveErr *nerrors.ResolveError
		if !errors.As(err, &resolveErr) || resolveErr.Kind != "ReleaseNotFound" {
			return err
		}
		// The tag list from git ls-remote can lag a just-published release,
		// making the releases-by-tag lookup 404 even though the tag exists;
		// re-resolve the tag via the GitHub API (not git ls-remote) and
		// retry exactly once.
		tag, rerr := in.ReleaseResolver.Resolve(ctx, plan.Repo, plan.AskedVersion, plan.TagRegex, true)
		if rerr != nil {
			return err
		}
		assets, err = in.listAssets(ctx, plan.Repo, tag)
		if err != nil {
			return err
		}
	}
	asset, err := in.AssetResolver.Resolve(assets, plan.BinaryNames, plan.AssetRegex, host)
	if err != nil {
		return err
	}
	sylog.Infof("selected asset %s", asset.Name)

	body, err := in.download(ctx, asset.BrowserDownloadURL)
	if err != nil {
		return err
	}

	return in.place(body, plan)
}

func normalize(plan *InstallPlan) error {
	if len(plan.BinaryNames) == 0 {
		return &nerrors.UsageError{Msg: "at least one binary name is required"}
	}
	if plan.LibName == "" {
		if len(plan.BinaryNames) > 1 {
			return &nerrors.UsageError{Msg: "--lib-name is required when multiple binary names are given"}
		}
		plan.LibName = plan.BinaryNames[0]
	}
	if plan.BinLocation == "" {
		plan.BinLocation = defaultBinLocation
	}
	if plan.LibLocation == "" {
		plan.LibLocation = defaultLibLocation
	}
	if plan.AskedVersion == "" {
		plan.AskedVersion = "latest"
	}
	return nil
}

func (in *Installer) listAssets(ctx context.Context, repo, tag string) ([]resolvers.ReleaseAsset, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases/tags/%s", repo, tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := in.HTTPClient.Do(req)
	if err != nil {
		return nil, &nerrors.ResolveError{Kind: "ReleaseNotFound", Msg: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, nerrors.NewReleaseNotFound(fmt.Sprintf("github api returned %d for %s: %s", resp.StatusCode, url, string(respBody)))
	}

	var payload struct {
		Assets []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
			Size               int64  `json:"size"`
			Label              string `json:"label"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nerrors.NewReleaseNotFound("malformed release response: " + err.Error())
	}

	out := make([]resolvers.ReleaseAsset, 0, len(payload.Assets))
	for _, a := range payload.Assets {
		out = append(out, resolvers.ReleaseAsset{
			Name: a.Name, BrowserDownloadURL: a.BrowserDownloadURL, Size: a.Size, Label: a.Label,
		})
	}
	return out, nil
}

func (in *Installer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "nanolayer")
	resp, err := in.HTTPClient.Do(req)
	if err != nil {
		return nil, &nerrors.RegistryError{Kind: "Network", Msg: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &nerrors.RegistryError{Kind: "Network", Msg: fmt.Sprintf("asset download returned %d", resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}

// place classifies the downloaded asset and writes it to disk per the
// archive / compressed-stream / raw-binary branches.
func (in *Installer) place(body []byte, plan InstallPlan) error {
	if a, err := archive.OpenBytes(body); err == nil && looksLikeRealArchive(body) {
		return in.placeArchive(a, plan)
	}

	if isCompressed, isTar := archive.IsCompressedSingleFile(body); isCompressed && !isTar {
		if len(plan.BinaryNames) != 1 {
			return &nerrors.IOError{Msg: "a single-file compressed asset cannot satisfy multiple binary names"}
		}
		decompressed, err := archive.DecompressSingleFile(body)
		if err != nil {
			return err
		}
		return writeBinary(filepath.Join(plan.BinLocation, plan.BinaryNames[0]), decompressed)
	}

	if len(plan.BinaryNames) != 1 {
		return &nerrors.IOError{Msg: "a raw binary asset cannot satisfy multiple binary names"}
	}
	return writeBinary(filepath.Join(plan.BinLocation, plan.BinaryNames[0]), body)
}

// looksLikeRealArchive distinguishes "this is a zip/tar/tar.gz/tar.xz archive" from
// the single-compressed-file case, which archive.OpenBytes would otherwise
// happily parse as a one-member tar of raw, non-tar bytes.
func looksLikeRealArchive(raw []byte) bool {
	if len(raw) >= 4 && bytes.Equal(raw[:4], []byte{0x50, 0x4b, 0x03, 0x04}) {
		return true
	}
	// xz: only reached after archive.OpenBytes has parsed it as a tar.xz.
	if len(raw) >= 6 && bytes.Equal(raw[:6], []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
		return true
	}
	isCompressed, isTar := archive.IsCompressedSingleFile(raw)
	if isCompressed {
		return isTar
	}
	// bare tar with no compression: sniff for the ustar magic at offset 257.
	return len(raw) > 262 && string(raw[257:263]) == "ustar\x00"
}

func (in *Installer) placeArchive(a archive.Archive, plan InstallPlan) error {
	resolved, err := in.BinaryResolver.Resolve(a, plan.BinaryNames)
	if err != nil {
		return err
	}

	fileMembers := a.Members()
	regularCount := 0
	for _, m := range fileMembers {
		if !m.Mode.IsDir() {
			regularCount++
		}
	}

	if regularCount == len(plan.BinaryNames) {
		for _, name := range plan.BinaryNames {
			if _, err := a.Extract(resolved[name], plan.BinLocation); err != nil {
				return err
			}
			target := filepath.Join(plan.BinLocation, path.Base(resolved[name]))
			renamed := filepath.Join(plan.BinLocation, name)
			if target != renamed {
				if err := os.Rename(target, renamed); err != nil {
					return &nerrors.IOError{Msg: err.Error()}
				}
			}
			if err := os.Chmod(renamed, 0o755); err != nil {
				return &nerrors.IOError{Msg: err.Error()}
			}
		}
		return nil
	}

	libDir := filepath.Join(plan.LibLocation, plan.LibName)
	if !plan.Force {
		if _, err := os.Lstat(libDir); err == nil {
			return &nerrors.IOError{Msg: libDir + " already exists; pass --force to overwrite"}
		}
	}
	if err := os.RemoveAll(libDir); err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}
	if err := a.ExtractAll(libDir); err != nil {
		return err
	}
	if err := chmodRecursive(libDir, 0o755); err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}

	for _, name := range plan.BinaryNames {
		memberPath := filepath.Join(libDir, resolved[name])
		linkPath := filepath.Join(plan.BinLocation, name)
		_ = os.Remove(linkPath) // override-on-conflict: drop a stale file or symlink first
		if err := os.Symlink(memberPath, linkPath); err != nil {
			return &nerrors.IOError{Msg: err.Error()}
		}
	}
	return nil
}

func writeBinary(dest string, data []byte) error {
	if err := os.WriteFile(dest, data, 0o755); err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}
	return nil
}

func chmodRecursive(root string, mode os.FileMode) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		return os.Chmod(p, mode)
	})
}
