// Package projects implements the projects command.
package projects

import (
	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/cmd/output"
	"github.com/oar-cd/pushdeploy/cmd/utils"
	"github.com/oar-cd/pushdeploy/launcher"
)

// NewCmdProjects creates a command listing deployable projects
func NewCmdProjects() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects under the projects root",
		Long: `List every directory under the projects root together with the state
of its deploy script. A push for a project whose script is not ready is
answered with 404.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjects(cmd)
		},
	}
	return cmd
}

func runProjects(cmd *cobra.Command) error {
	cfg, err := utils.LoadConfig(cmd)
	if err != nil {
		return err
	}

	projects, err := launcher.Discover(cfg.ProjectsRoot, cfg.ScriptName)
	if err != nil {
		return err
	}

	table, err := output.PrintProjectList(projects)
	if err != nil {
		return err
	}
	return output.FprintPlain(cmd, "%s", table)
}
