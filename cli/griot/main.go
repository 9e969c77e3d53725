package main

import (
	"os"

	griotcmder "github.com/davidhonghikim/griot-sub000/cmd/griot"
)

func main() {
	cmd := griotcmder.NewGriotCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
