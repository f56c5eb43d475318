package feature

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/archive"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/invoker"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/ociref"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/ociregistry"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/settings"
	"github.com/devcontainers-contrib/nanolayer/pkg/sylog"
)

// InstallPlan describes one devcontainer-feature install invocation.
type InstallPlan struct {
	FeatureRef string
	Options    map[string]string
	ExtraEnv   map[string]string
	RemoteUser string
	Verbose    bool
}

// Installer ties OCI fetch, option/env resolution and Invoker execution
// together into one devcontainer-feature install.
type Installer struct {
	Registry *ociregistry.Client
	Settings settings.Settings
	// SelfPath is this binary's own executable path, propagated to feature
	// scripts as NANOLAYER_CLI_LOCATION when Settings.PropagateCLILocation
	// is set.
	SelfPath string
}

// NewInstaller returns an Installer wired with a default OCI client and
// settings read from the environment.
func NewInstaller() *Installer {
	self, _ := os.Executable()
	return &Installer{
		Registry: ociregistry.NewClient(),
		Settings: settings.Load(),
		SelfPath: self,
	}
}

// Install runs the full devcontainer-feature flow.
func (in *Installer) Install(ctx context.Context, plan InstallPlan) error {
	if !hostfacts.IsRoot() {
		return &nerrors.PermissionDenied{Msg: "install devcontainer-feature requires root"}
	}

	ref := ociref.Parse(plan.FeatureRef)

	installID := uuid.NewString()
	sylog.Debugf("feature install %s: ref=%s", installID, ref.String())

	tmpDir := filepath.Join(os.TempDir(), "nanolayer-feature-"+installID)
	if err := os.Mkdir(tmpDir, 0o700); err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}
	defer os.RemoveAll(tmpDir)

	if err := in.fetchAndExtract(ctx, ref, tmpDir); err != nil {
		return err
	}

	descriptorPath := filepath.Join(tmpDir, "devcontainer-feature.json")
	raw, err := os.ReadFile(descriptorPath)
	if err != nil {
		return &nerrors.IOError{Msg: "feature bundle is missing devcontainer-feature.json: " + err.Error()}
	}
	descriptor, err := ParseDescriptor(raw)
	if err != nil {
		return &nerrors.IOError{Msg: "malformed devcontainer-feature.json: " + err.Error()}
	}
	if descriptor.ID == "" {
		descriptor.ID = ref.ID()
	}

	options := ResolveOptions(descriptor, plan.Options)
	remoteUser := ResolveRemoteUser(plan.RemoteUser)

	env := in.buildEnv(options, remoteUser, plan.ExtraEnv)

	installScript := filepath.Join(tmpDir, "install.sh")
	if _, err := os.Stat(installScript); err != nil {
		return &nerrors.IOError{Msg: "feature bundle is missing install.sh: " + err.Error()}
	}

	flags := "-i +H"
	if plan.Verbose || in.Settings.Verbose {
		flags += " -x"
	}
	command := fmt.Sprintf("cd %s && chmod -R +x . && bash %s ./install.sh", shellQuote(tmpDir), flags)

	sylog.Infof("running install.sh for feature %s", descriptor.ID)
	if _, err := invoker.Run(ctx, command, invoker.Options{Env: env, RaiseOnFailure: true, CleanHistory: true}); err != nil {
		return err
	}

	return persistContainerEnv(descriptor.ID, descriptor.ContainerEnv)
}

// Inspect fetches and extracts featureRef the same way Install does, but
// stops after parsing devcontainer-feature.json: it runs no root check and
// never executes install.sh. It exists for a Dockerfile author to check what
// options a feature exposes before committing to an install.
func (in *Installer) Inspect(ctx context.Context, featureRef string) (Descriptor, error) {
	ref := ociref.Parse(featureRef)

	tmpDir, err := os.MkdirTemp(os.TempDir(), "nanolayer-inspect-")
	if err != nil {
		return Descriptor{}, &nerrors.IOError{Msg: err.Error()}
	}
	defer os.RemoveAll(tmpDir)

	if err := in.fetchAndExtract(ctx, ref, tmpDir); err != nil {
		return Descriptor{}, err
	}

	raw, err := os.ReadFile(filepath.Join(tmpDir, "devcontainer-feature.json"))
	if err != nil {
		return Descriptor{}, &nerrors.IOError{Msg: "feature bundle is missing devcontainer-feature.json: " + err.Error()}
	}
	descriptor, err := ParseDescriptor(raw)
	if err != nil {
		return Descriptor{}, &nerrors.IOError{Msg: "malformed devcontainer-feature.json: " + err.Error()}
	}
	if descriptor.ID == "" {
		descriptor.ID = ref.ID()
	}
	return descriptor, nil
}

func (in *Installer) fetchAndExtract(ctx context.Context, ref ociref.Ref, destDir string) error {
	manifest, err := in.Registry.FetchManifest(ctx, ref)
	if err != nil {
		return err
	}
	if len(manifest.Layers) != 1 {
		return &nerrors.RegistryError{Kind: "MissingLayer", Msg: fmt.Sprintf("expected exactly one layer, got %d", len(manifest.Layers))}
	}

	blob, err := in.Registry.FetchBlob(ctx, ref, manifest.Layers[0])
	if err != nil {
		return err
	}

	a, err := archive.OpenBytes(blob)
	if err != nil {
		return err
	}
	return a.ExtractAll(destDir)
}

func (in *Installer) buildEnv(options map[string]OptionValue, remoteUser RemoteUser, extra map[string]string) map[string]string {
	env := map[string]string{
		"_REMOTE_USER":      remoteUser.Name,
		"_REMOTE_USER_HOME": remoteUser.Home,
	}
	for name, v := range options {
		env[strings.ToUpper(name)] = v.EnvString()
	}
	for k, v := range extra {
		env[k] = v
	}

	env[settings.EnvVerbose] = boolEnvString(in.Settings.Verbose)
	env[settings.EnvForceCLIInstallation] = boolEnvString(in.Settings.ForceCLIInstallation)
	env[settings.EnvPropagateCLILocation] = boolEnvString(in.Settings.PropagateCLILocation)
	if in.Settings.PropagateCLILocation && in.SelfPath != "" {
		env[settings.EnvCLILocation] = in.SelfPath
	}
	return env
}

func boolEnvString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// persistContainerEnv ensures /etc/profile.d/nanolayer-<id>.sh exists and
// contains exactly one `export NAME=VALUE` line per entry of containerEnv,
// appending only the lines not already present.
func persistContainerEnv(featureID string, containerEnv map[string]string) error {
	path := filepath.Join("/etc/profile.d", "nanolayer-"+featureID+".sh")

	existing := map[string]bool{}
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			existing[strings.TrimSpace(scanner.Text())] = true
		}
		f.Close()
	}

	names := make([]string, 0, len(containerEnv))
	for name := range containerEnv {
		names = append(names, name)
	}
	sort.Strings(names)

	var toAppend []string
	for _, name := range names {
		line := fmt.Sprintf("export %s=%s", name, shellQuote(containerEnv[name]))
		if !existing[line] {
			toAppend = append(toAppend, line)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &nerrors.IOError{Msg: err.Error()}
	}
	defer f.Close()
	for _, line := range toAppend {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return &nerrors.IOError{Msg: err.Error()}
		}
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
