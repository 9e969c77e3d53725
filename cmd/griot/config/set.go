package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file stored in
the .griot/ directory. Numeric and duration values are validated before
anything is written.

Examples:
  griot config set generation.backend vllm
  griot config set generation.target http://gpu:8000/v1
  griot config set embedding.dimensions 1024
  griot config set vectorize.item_delay 250ms`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd.OutOrStdout(), args[0], args[1], cmdutil.ConfigDir(cmd))
		},
	}

	return cmd
}

func runSet(w io.Writer, key, value, configDir string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Fprint(w, configFileLine(cfger))
	fmt.Fprintf(w, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}
