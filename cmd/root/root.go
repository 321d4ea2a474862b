// Package root implements the command line interface for pushdeploy.
package root

import (
	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/cmd/config"
	"github.com/oar-cd/pushdeploy/cmd/output"
	"github.com/oar-cd/pushdeploy/cmd/projects"
	"github.com/oar-cd/pushdeploy/cmd/server"
	"github.com/oar-cd/pushdeploy/cmd/sign"
	"github.com/oar-cd/pushdeploy/cmd/utils"
	"github.com/oar-cd/pushdeploy/cmd/version"
	"github.com/oar-cd/pushdeploy/logging"
)

const defaultEnvFile = ".env"

func Execute() {
	if cmd, err := NewCmdRoot().ExecuteC(); err != nil {
		utils.HandleCommandError(cmd, err)
	}
}

func NewCmdRoot() *cobra.Command {
	var configPath string
	var envFiles []string

	cmd := &cobra.Command{
		Use:   "pushdeploy",
		Short: "Run deploy scripts on GitHub push webhooks",
		Long: `pushdeploy receives GitHub push webhooks, verifies their signature and,
for pushes to the target branch, runs the deploy script of the pushed
repository. Outcomes are reported to Telegram.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			output.InitColors(output.NoColor.IsSet())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "f", "", "Path to YAML configuration file")
	cmd.PersistentFlags().
		StringSliceVarP(&envFiles, "env-file", "e", []string{defaultEnvFile}, "Environment files to load (missing files are skipped)")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")

	cmd.AddCommand(server.NewCmdServer())
	cmd.AddCommand(projects.NewCmdProjects())
	cmd.AddCommand(sign.NewCmdSign())
	cmd.AddCommand(config.NewCmdConfig())
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}
