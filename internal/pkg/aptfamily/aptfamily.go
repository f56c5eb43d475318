// Package aptfamily implements the apt / apt-get / aptitude install flow:
// update, optional PPA enablement, install, and a finally-block cleanup that
// restores /var/lib/apt/lists so the resulting image layer only reflects the
// packages actually requested.
package aptfamily

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/invoker"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
	"github.com/devcontainers-contrib/nanolayer/pkg/sylog"
)

// Frontend selects which command line tool drives the install.
type Frontend string

const (
	FrontendApt      Frontend = "apt"
	FrontendAptGet   Frontend = "apt-get"
	FrontendAptitude Frontend = "aptitude"
)

const aptListsDir = "/var/lib/apt/lists"

// InstallPlan describes one apt-family install invocation.
type InstallPlan struct {
	Frontend             Frontend
	Packages             []string
	PPAs                 []string
	ForcePPAsOnNonUbuntu bool
	PreserveAptList      bool
}

// Installer runs the apt/apt-get/aptitude flow described by §4.9.
type Installer struct{}

// NewInstaller returns an Installer. It holds no state.
func NewInstaller() *Installer { return &Installer{} }

// Install runs plan's update -> PPA -> install -> cleanup sequence. Cleanup
// (PPA teardown, support-package purge, cache clean, apt-list restore) always
// runs, even when an earlier stage failed, mirroring a try/finally.
func (in *Installer) Install(ctx context.Context, plan InstallPlan) (err error) {
	if !hostfacts.IsRoot() {
		return &nerrors.PermissionDenied{Msg: "install " + string(plan.Frontend) + " requires root"}
	}
	host, probeErr := hostfacts.Probe()
	if probeErr != nil {
		return &nerrors.IOError{Msg: probeErr.Error()}
	}
	if host.IDLike != hostfacts.DistroDebian && host.ReleaseID != hostfacts.DistroDebian &&
		host.IDLike != hostfacts.DistroUbuntu && host.ReleaseID != hostfacts.DistroUbuntu {
		return &nerrors.HostUnsupported{Msg: string(plan.Frontend) + " requires a debian-like host"}
	}

	if plan.Frontend == FrontendAptitude {
		selfInstalled, installErr := ensurePackage(ctx, "aptitude")
		if installErr != nil {
			return installErr
		}
		defer func() {
			if selfInstalled {
				if purgeErr := purgePackages(ctx, "aptitude"); err == nil {
					err = purgeErr
				}
			}
		}()
	}

	ppas := normalizePPAs(plan.PPAs)

	var snapshot string
	if plan.PreserveAptList {
		snapshot, err = snapshotDir(aptListsDir)
		if err != nil {
			return &nerrors.IOError{Msg: err.Error()}
		}
	}

	var supportPackagesInstalled []string
	addedPPAs := []string{}

	defer func() {
		cleanupErr := in.cleanup(ctx, plan.Frontend, addedPPAs, supportPackagesInstalled, snapshot, plan.PreserveAptList)
		if err == nil {
			err = cleanupErr
		}
	}()

	if runErr := runFrontend(ctx, plan.Frontend, "update", nil); runErr != nil {
		return runErr
	}

	if len(ppas) > 0 {
		useThem := host.ReleaseID == hostfacts.DistroUbuntu || plan.ForcePPAsOnNonUbuntu
		if !useThem {
			sylog.Warningf("dropping PPAs on non-ubuntu host %s (pass --force-ppas-on-non-ubuntu to install them anyway)", host.ReleaseID)
		} else {
			installed, installErr := ensurePackage(ctx, "software-properties-common")
			if installErr != nil {
				return installErr
			}
			if installed {
				supportPackagesInstalled = append(supportPackagesInstalled, "software-properties-common")
			}
			if host.ReleaseID != hostfacts.DistroUbuntu {
				installed, installErr := ensurePackage(ctx, "python3-launchpadlib")
				if installErr != nil {
					return installErr
				}
				if installed {
					supportPackagesInstalled = append(supportPackagesInstalled, "python3-launchpadlib")
				}
			}

			for _, ppa := range ppas {
				if _, runErr := invoker.Run(ctx, "add-apt-repository -y "+shellQuote(ppa), invoker.DefaultOptions()); runErr != nil {
					return runErr
				}
				addedPPAs = append(addedPPAs, ppa)
			}
			if runErr := runFrontend(ctx, plan.Frontend, "update", nil); runErr != nil {
				return runErr
			}
		}
	}

	installArgs := []string{"-y"}
	if plan.Frontend != FrontendAptitude {
		installArgs = append(installArgs, "--no-install-recommends")
	}
	installArgs = append(installArgs, plan.Packages...)
	if runErr := runFrontend(ctx, plan.Frontend, "install", installArgs); runErr != nil {
		return runErr
	}

	return nil
}

// cleanup implements the always-runs tail of §4.9: remove added PPAs, purge
// support packages this call installed, clean the package cache, and restore
// the pre-call apt list snapshot.
func (in *Installer) cleanup(ctx context.Context, frontend Frontend, addedPPAs, supportPackages []string, snapshot string, preserveAptList bool) error {
	// Every stage below is independent best-effort cleanup; collect every
	// failure instead of stopping at the first so a failed PPA removal
	// doesn't hide a failed apt-list restore.
	var result *multierror.Error

	for _, ppa := range addedPPAs {
		_, err := invoker.Run(ctx, "add-apt-repository -y --remove "+shellQuote(ppa), invoker.Options{RaiseOnFailure: false, CleanHistory: true})
		result = multierror.Append(result, err)
	}

	if len(supportPackages) > 0 {
		result = multierror.Append(result, purgePackages(ctx, supportPackages...))
	}

	result = multierror.Append(result, runFrontend(ctx, frontend, "clean", nil))

	if preserveAptList && snapshot != "" {
		result = multierror.Append(result, restoreDir(aptListsDir, snapshot))
	}

	return result.ErrorOrNil()
}

func runFrontend(ctx context.Context, frontend Frontend, subcommand string, args []string) error {
	parts := append([]string{string(frontend), subcommand}, args...)
	_, err := invoker.Run(ctx, strings.Join(quoteAll(parts), " "), invoker.DefaultOptions())
	return err
}

// ensurePackage installs pkg with apt-get if dpkg doesn't already know about
// it, and reports whether it performed the install (so callers can purge
// only what they themselves added).
func ensurePackage(ctx context.Context, pkg string) (installed bool, err error) {
	check := exec.CommandContext(ctx, "dpkg", "-s", pkg)
	if runErr := check.Run(); runErr == nil {
		return false, nil
	}
	if _, runErr := invoker.Run(ctx, "apt-get install -y "+shellQuote(pkg), invoker.DefaultOptions()); runErr != nil {
		return false, runErr
	}
	return true, nil
}

func purgePackages(ctx context.Context, pkgs ...string) error {
	_, err := invoker.Run(ctx, "apt-get -y purge "+strings.Join(quoteAll(pkgs), " ")+" --auto-remove", invoker.Options{RaiseOnFailure: false, CleanHistory: true})
	return err
}

// normalizePPAs prepends the "ppa:" scheme to any entry that doesn't already
// carry it, so callers may pass either "neovim-ppa/stable" or
// "ppa:neovim-ppa/stable".
func normalizePPAs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "ppa:") {
			p = "ppa:" + p
		}
		out = append(out, p)
	}
	return out
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = shellQuote(s)
	}
	return out
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// snapshotDir copies dir's contents into a fresh temp directory and returns
// its path, so cleanup can later restore exactly this state regardless of
// what the install mutated.
func snapshotDir(dir string) (string, error) {
	tmp, err := os.MkdirTemp("", "nanolayer-apt-lists-*")
	if err != nil {
		return "", err
	}
	if err := copyTree(dir, tmp); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	return tmp, nil
}

// restoreDir replaces dir's contents with snapshot's, using rm -r + mv
// rather than a glob expansion: ash (Alpine's default shell) does not
// support the same globbing semantics bash does, and this routine is shared
// with ApkInstaller's cache restore.
func restoreDir(dir, snapshot string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.Rename(snapshot, dir); err != nil {
		return err
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
