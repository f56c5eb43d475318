// Package cli implements nanolayer's command tree: a root command carrying
// global logging flags, and an `install` command with one subcommand per
// install family.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/cmdline"
	"github.com/devcontainers-contrib/nanolayer/pkg/sylog"
)

var (
	debug   bool
	verbose bool
	quiet   bool
	nocolor bool
)

// RootCmd is nanolayer's top-level command.
var RootCmd = &cobra.Command{
	Use:           "nanolayer",
	Short:         "nanolayer compresses container-image install recipes into single cache-friendly invocations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyLogLevel()
	},
}

func init() {
	mgr := cmdline.NewCommandManager([]*cobra.Command{RootCmd})
	mgr.RegisterFlagForAll(&cmdline.Flag{
		ID: "debug", Value: &debug, DefaultValue: false,
		Name: "debug", ShortHand: "d", Usage: "print debugging information (highest verbosity)",
	})
	mgr.RegisterFlagForAll(&cmdline.Flag{
		ID: "verbose", Value: &verbose, DefaultValue: false,
		Name: "verbose", ShortHand: "v", Usage: "print additional information",
		EnvKeys: []string{cmdline.SettingsEnvKeys.Verbose}, WithoutPrefix: true,
	})
	mgr.RegisterFlagForAll(&cmdline.Flag{
		ID: "quiet", Value: &quiet, DefaultValue: false,
		Name: "quiet", ShortHand: "q", Usage: "suppress normal output",
	})
	mgr.RegisterFlagForAll(&cmdline.Flag{
		ID: "nocolor", Value: &nocolor, DefaultValue: false,
		Name: "nocolor", Usage: "print without color output",
	})

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "run one of nanolayer's install families",
	}
	installCmd.AddCommand(
		newFeatureCmd(),
		newInspectFeatureCmd(),
		newAptFamilyCmd("apt"),
		newAptFamilyCmd("apt-get"),
		newAptFamilyCmd("aptitude"),
		newApkCmd(),
		newGHReleaseCmd(),
	)
	RootCmd.AddCommand(installCmd)
}

func applyLogLevel() {
	if nocolor {
		color.NoColor = true
	}
	switch {
	case debug:
		sylog.SetLevel(sylog.DebugLevel)
	case verbose:
		sylog.SetLevel(sylog.VerboseLevel)
	case quiet:
		sylog.SetLevel(sylog.ErrorLevel)
	default:
		sylog.SetLevel(sylog.InfoLevel)
	}
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
