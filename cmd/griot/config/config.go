// Package configcmder provides the config command for managing persistent
// griot configuration stored in the .griot/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/config"
)

const configLongDesc string = `Manage persistent griot configuration.

Configuration is stored as config.toml in the .griot/ directory and provides
default values for command flags. CLI flags and GRIOT_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example
generation.backend, embedding.model or vector_store.provider. Run
"griot config list" to see every key.

Examples:
  griot config set generation.backend vllm
  griot config set retrieval.threshold 0.6
  griot config get embedding.model
  griot config list`

const configShortDesc string = "Manage persistent griot configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func configFileLine(cfger *config.Configer) string {
	if target := cfger.GetTarget(); target != "" {
		return fmt.Sprintf("\n  %s %s\n\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
	}
	return fmt.Sprintf("\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
