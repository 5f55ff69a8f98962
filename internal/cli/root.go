package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"meetingrec/internal/config"
	"meetingrec/internal/logging"
	"meetingrec/internal/version"
)

// Dependencies is filled in by the root command before any subcommand runs.
type Dependencies struct {
	ConfigFile string
	Config     config.Config

	logFile *os.File
}

// NewRootCmd builds the meetingrec command tree.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "meetingrec",
		Short:         "Record meetings with screenshots and transcripts",
		Long:          "MeetingRec records microphone and system audio, captures screenshots during the meeting, transcribes the recording and writes a markdown report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return deps.load(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			deps.close()
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.PersistentFlags().StringVar(&deps.ConfigFile, "config", "", "config file (default is ~/.meetingrec/config.yaml)")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewWatchCmd(deps))
	rootCmd.AddCommand(NewConfigCmd(deps))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

func (d *Dependencies) load(stderr io.Writer) error {
	cfg, err := config.Load(d.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	d.Config = cfg

	var out io.Writer = stderr
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		d.logFile = f
		out = f
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, out)
	return nil
}

func (d *Dependencies) close() {
	_ = logging.Sync()
	if d.logFile != nil {
		_ = d.logFile.Close()
		d.logFile = nil
	}
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}
