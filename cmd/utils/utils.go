// Package utils provides utility functions for pushdeploy CLI commands.
package utils

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/cmd/output"
	"github.com/oar-cd/pushdeploy/config"
	"github.com/oar-cd/pushdeploy/logging"
)

// HandleCommandError reports a failed command and exits with status 1
func HandleCommandError(cmd *cobra.Command, err error, context ...any) {
	ReportCommandError(cmd, err, context...)
	os.Exit(1)
}

// ReportCommandError logs err and prints it to the command's stderr
func ReportCommandError(cmd *cobra.Command, err error, context ...any) {
	slog.Error("Command failed", append([]any{"operation", cmd.Name(), "error", err}, context...)...)
	_ = output.FprintError(cmd, "Error: %s failed: %v", cmd.Name(), err)
}

// LoadConfig builds the configuration from the --config and --env-file
// flags inherited from the root command
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")

	env, err := config.NewDefaultEnvProvider(envFiles...)
	if err != nil {
		return nil, err
	}
	return config.NewConfigWithEnv(configPath, env)
}

// InitLogging configures the default logger from the config. The
// --log-level flag overrides the configured level.
func InitLogging(cfg *config.Config) (io.Closer, error) {
	opts := LoggingOptions(cfg)
	return logging.InitLogging(opts)
}

// LoggingOptions returns the logging options for cfg with CLI overrides applied
func LoggingOptions(cfg *config.Config) logging.Options {
	level := cfg.LogLevel
	if logging.LogLevel.IsSet() {
		level = logging.LogLevel.String()
	}
	return logging.Options{
		Level:  level,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}
}
