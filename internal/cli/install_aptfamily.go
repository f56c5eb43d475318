package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/aptfamily"
)

func newAptFamilyCmd(frontend string) *cobra.Command {
	var (
		ppas                 []string
		forcePPAsOnNonUbuntu bool
		noPreserveAptList    bool
	)

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s PKGS", frontend),
		Short: fmt.Sprintf("install debian packages via %s, with PPA and apt-list-cache handling", frontend),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			installer := aptfamily.NewInstaller()
			plan := aptfamily.InstallPlan{
				Frontend:             aptfamily.Frontend(frontend),
				Packages:             splitCommaList(args[0]),
				PPAs:                 ppas,
				ForcePPAsOnNonUbuntu: forcePPAsOnNonUbuntu,
				PreserveAptList:      !noPreserveAptList,
			}
			return installer.Install(context.Background(), plan)
		},
	}

	cmd.Flags().StringSliceVar(&ppas, "ppas", nil, "comma-separated list of PPAs to enable before installing")
	cmd.Flags().BoolVar(&forcePPAsOnNonUbuntu, "force-ppas-on-non-ubuntu", false, "install PPAs even on a non-ubuntu debian-like host")
	cmd.Flags().BoolVar(&noPreserveAptList, "no-preserve-apt-list", false, "skip snapshotting and restoring /var/lib/apt/lists")
	return cmd
}

func newApkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apk PKGS",
		Short: "install alpine packages via apk, preserving /var/cache/apk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			installer := aptfamily.NewApkInstaller()
			plan := aptfamily.ApkInstallPlan{Packages: splitCommaList(args[0])}
			return installer.Install(context.Background(), plan)
		},
	}
	return cmd
}
