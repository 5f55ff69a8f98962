package main

import (
	"os"

	"meetingrec/internal/cli"
	"meetingrec/internal/output"
)

func main() {
	if err := cli.NewRootCmd(&cli.Dependencies{}).Execute(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}
