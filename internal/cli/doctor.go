package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"meetingrec/internal/output"
	"meetingrec/internal/preflight"
)

var errPrerequisites = errors.New("some required prerequisites are missing")

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, deps, preflight.Runner{})
		},
	}
}

func runDoctor(cmd *cobra.Command, deps *Dependencies, runner preflight.Runner) error {
	result := runner.Run(deps.Config)
	if err := output.Checks(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	f := output.NewFormatter(cmd.OutOrStdout())
	for _, err := range deps.Config.Validate() {
		f.Warning(err.Error())
	}
	if deps.Config.File != "" {
		f.Info("config " + deps.Config.File)
	} else {
		f.Info("no config file found, using defaults (run meetingrec config init)")
	}

	if !result.OK {
		return errPrerequisites
	}
	f.Success("Ready to record")
	return nil
}
