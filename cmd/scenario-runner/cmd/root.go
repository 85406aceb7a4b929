package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command; every sub-command is registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario-runner",
		Short: "Create Planscape scenarios and track them to completion.",
		Long: `scenario-runner submits treatment scenarios to the Planscape API, polls them
until the remote job finishes, and turns the result into chart series.

Configuration is read from configs/config.yaml (or --config) with environment
overrides such as PLANSCAPE_BASE_URL and PLANSCAPE_API_TOKEN.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "Path to a config file (default: configs/config.yaml)")

	cmd.AddCommand(
		submitCmd(),
		watchCmd(),
		exportCmd(),
		validateFormCmd(),
	)
	return cmd
}
