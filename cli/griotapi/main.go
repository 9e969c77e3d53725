package main

import (
	"os"

	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	servecmder "github.com/davidhonghikim/griot-sub000/cmd/griot/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "griotapi"
	cmd.PersistentFlags().BoolP(cmdutil.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(cmdutil.FlagConfigDir, "", "Override the .griot/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
