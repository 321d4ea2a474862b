// Package config implements the config command, which prints the
// effective configuration.
package config

import (
	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/cmd/output"
	"github.com/oar-cd/pushdeploy/cmd/utils"
)

func NewCmdConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Load the configuration the same way the server does (defaults, config
file, .env files and environment) and print it with secrets masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd)
		},
	}
	return cmd
}

func runConfig(cmd *cobra.Command) error {
	cfg, err := utils.LoadConfig(cmd)
	if err != nil {
		return err
	}

	table, err := output.PrintConfig(cfg)
	if err != nil {
		return err
	}
	return output.FprintPlain(cmd, "%s", table)
}
