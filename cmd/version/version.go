// Package version provides the version command for pushdeploy.
package version

import (
	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/app"
	"github.com/oar-cd/pushdeploy/cmd/output"
)

// NewCmdVersion creates the version command
func NewCmdVersion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version information for pushdeploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd)
		},
	}

	return cmd
}

func runVersion(cmd *cobra.Command) error {
	return output.FprintPlain(cmd, "%s", app.Version)
}
