// Package cmdutil holds the plumbing shared by griot subcommands: flag
// lookups, logger construction and API client resolution.
package cmdutil

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/api/client"
	"github.com/davidhonghikim/griot-sub000/pkg/config"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
)

// Persistent flag names registered on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
)

// Debug reads the persistent --debug flag. A missing flag reads as false.
func Debug(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool(FlagDebug)
	return debug
}

// ConfigDir reads the persistent --config-dir flag.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString(FlagConfigDir)
	return dir
}

// NewLogger builds the pretty CLI logger on stderr so command output on
// stdout stays pipeable.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	return logger.New(
		logger.WithDebug(Debug(cmd)),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
}

// AddAPITargetFlag registers --api-target on cmd.
func AddAPITargetFlag(cmd *cobra.Command, target *string) {
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, target)
}

// NewClient resolves the API target through the viper precedence chain
// (flag, GRIOT_CLIENT_API_TARGET, config.toml, default) and returns a
// client for it.
func NewClient(cmd *cobra.Command) (*client.Client, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

	target := config.Lookup(v, "client.api_target", config.NewDefaultConfig().Client.APITarget)
	return client.New(target)
}
