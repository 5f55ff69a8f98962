package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meetingrec/internal/config"
	"meetingrec/internal/output"
)

func NewConfigCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(deps))
	cmd.AddCommand(newConfigShowCmd(deps))
	return cmd
}

func newConfigInitCmd(deps *Dependencies) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path := deps.ConfigFile
			if path == "" {
				path = config.DefaultPath(home)
			}
			if err := config.WriteDefault(path, config.Default(home), force); err != nil {
				return err
			}
			output.NewFormatter(cmd.OutOrStdout()).Success("Wrote " + path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cfg.Transcription.APIKey != "" {
				cfg.Transcription.APIKey = "********"
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
