package aptfamily

import (
	"context"
	"strings"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/invoker"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
)

const apkCacheDir = "/var/cache/apk"

// ApkInstallPlan describes one Alpine apk install invocation.
type ApkInstallPlan struct {
	Packages []string
}

// ApkInstaller runs Alpine's equivalent of the apt-family flow: a plain
// update/add wrapped in a cache snapshot-and-restore, since apk has no PPA
// concept to manage.
type ApkInstaller struct{}

// NewApkInstaller returns an ApkInstaller. It holds no state.
func NewApkInstaller() *ApkInstaller { return &ApkInstaller{} }

func (in *ApkInstaller) Install(ctx context.Context, plan ApkInstallPlan) (err error) {
	if !hostfacts.IsRoot() {
		return &nerrors.PermissionDenied{Msg: "install apk requires root"}
	}
	host, probeErr := hostfacts.Probe()
	if probeErr != nil {
		return &nerrors.IOError{Msg: probeErr.Error()}
	}
	if host.ReleaseID != hostfacts.DistroAlpine && host.IDLike != hostfacts.DistroAlpine {
		return &nerrors.HostUnsupported{Msg: "install apk requires an alpine-like host"}
	}

	snapshot, err := snapshotDir(apkCacheDir)
	if err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}
	defer func() {
		if restoreErr := restoreDir(apkCacheDir, snapshot); err == nil {
			err = restoreErr
		}
	}()

	if _, runErr := invoker.Run(ctx, "apk update", invoker.DefaultOptions()); runErr != nil {
		return runErr
	}

	command := "apk add --no-cache " + strings.Join(quoteAll(plan.Packages), " ")
	if _, runErr := invoker.Run(ctx, command, invoker.DefaultOptions()); runErr != nil {
		return runErr
	}
	return nil
}
