package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file stored in the
.griot/ directory, falling back to the built-in default.

Examples:
  griot config get generation.backend
  griot config get embedding.model`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "get <key>",
		Short:             getShortDesc,
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.OutOrStdout(), args[0], cmdutil.ConfigDir(cmd))
		},
	}

	return cmd
}

func runGet(w io.Writer, key, configDir string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	fmt.Fprint(w, configFileLine(cfger))
	fmt.Fprint(w, cliui.KeyValue(key, len(key), value))
	fmt.Fprintln(w)
	return nil
}
