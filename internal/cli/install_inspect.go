package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/feature"
)

func newInspectFeatureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect-feature FEATURE_REF",
		Short: "fetch a devcontainer feature and print its parsed descriptor, without running install.sh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			installer := feature.NewInstaller()
			descriptor, err := installer.Inspect(context.Background(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(descriptor, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}
