package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key and its current value, with defaults
filled in for keys the config.toml file does not set.

Examples:
  griot config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.OutOrStdout(), cmdutil.ConfigDir(cmd))
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	keys := config.ValidConfigKeys()

	maxLen := 0
	for _, k := range keys {
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}

	fmt.Fprint(w, configFileLine(cfger))
	for _, key := range keys {
		value, err := config.GetValue(cfg, key)
		if err != nil {
			return err
		}
		fmt.Fprint(w, cliui.KeyValue(key, maxLen, value))
	}
	fmt.Fprintln(w)
	return nil
}
