package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/feature"
)

func newFeatureCmd() *cobra.Command {
	var (
		options    []string
		envEntries []string
		remoteUser string
	)

	cmd := &cobra.Command{
		Use:   "devcontainer-feature FEATURE_REF",
		Short: "install an OCI-distributed devcontainer feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			optionMap, err := parseKV(options)
			if err != nil {
				return err
			}
			envMap, err := parseKV(envEntries)
			if err != nil {
				return err
			}

			installer := feature.NewInstaller()
			plan := feature.InstallPlan{
				FeatureRef: args[0],
				Options:    optionMap,
				ExtraEnv:   envMap,
				RemoteUser: remoteUser,
				Verbose:    verbose,
			}
			return installer.Install(context.Background(), plan)
		},
	}

	cmd.Flags().StringArrayVar(&options, "option", nil, "feature option as K=V, repeatable")
	cmd.Flags().StringArrayVar(&envEntries, "env", nil, "extra child-script environment variable as K=V, repeatable")
	cmd.Flags().StringVar(&remoteUser, "remote-user", "", "remote user name; probed from vscode/node/codespace/uid 1000 if omitted")
	return cmd
}
