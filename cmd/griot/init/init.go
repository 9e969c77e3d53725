// Package initcmder provides the init command for initializing a local
// .griot directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/pkg/config"
)

const (
	dirName = ".griot"
)

const initLongDesc string = `Initialize a new .griot/ directory in the current working directory.

Creates a local .griot/ directory that takes precedence over ~/.griot/ for
configuration and query history. This keeps separate persona setups per
project.

With --preset a config.toml is written for the named generation backend.

Examples:
  griot init
  griot init --preset vllm`

const initShortDesc string = "Initialize a local .griot/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Write a config.toml for a backend preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(w io.Writer, preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .griot directory: %w", err)
		}
		fmt.Fprintf(w, "Initialized .griot directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "Wrote %s preset to %s\n", strings.ToLower(preset), cfger.GetTarget())
	return nil
}
