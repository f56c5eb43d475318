package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/ghrelease"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
)

func newGHReleaseCmd() *cobra.Command {
	var (
		version     string
		libName     string
		assetRegex  string
		binLocation string
		libLocation string
		force       bool
		arch        string
	)

	cmd := &cobra.Command{
		Use:   "gh-release REPO BIN_NAMES",
		Short: "download and place a binary (or binaries) from a GitHub release",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			installer := ghrelease.NewInstaller()
			plan := ghrelease.InstallPlan{
				Repo:         args[0],
				BinaryNames:  splitCommaList(args[1]),
				LibName:      libName,
				AskedVersion: version,
				AssetRegex:   assetRegex,
				BinLocation:  binLocation,
				LibLocation:  libLocation,
				Force:        force,
				ArchOverride: hostfacts.Architecture(arch),
			}
			return installer.Install(context.Background(), plan)
		},
	}

	cmd.Flags().StringVar(&version, "version", "latest", "release tag, or \"latest\"")
	cmd.Flags().StringVar(&version, "release-version", "latest", "alias of --version")
	cmd.Flags().StringVar(&libName, "lib-name", "", "directory name under --lib-location for multi-file archives")
	cmd.Flags().StringVar(&assetRegex, "asset-regex", "", "regex narrowing the release asset before automatic selection")
	cmd.Flags().StringVar(&binLocation, "bin-location", "", "directory to place binaries in (default /usr/local/bin)")
	cmd.Flags().StringVar(&libLocation, "lib-location", "", "directory to place library bundles in (default /usr/local/lib)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite pre-existing targets")
	cmd.Flags().StringVar(&arch, "arch", "", "override the probed host architecture")
	return cmd
}
