package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meetingrec/internal/bootstrap"
	"meetingrec/internal/config"
	"meetingrec/internal/logging"
	"meetingrec/internal/output"
	"meetingrec/internal/tui"
)

const shutdownTimeout = 10 * time.Second

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var startNow bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Open the interactive recorder",
		Long:  "Open the interactive recorder. Press r to record, space to capture a screenshot, x to stop, t to transcribe and e to export the report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.logFile == nil {
				if err := deps.redirectLogs(); err != nil {
					return err
				}
			}
			return runRecorder(cmd.Context(), deps.Config, startNow)
		},
	}

	cmd.Flags().BoolVar(&startNow, "start", false, "start recording immediately")
	return cmd
}

// redirectLogs moves logging off the terminal while the recorder owns it.
func (d *Dependencies) redirectLogs() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	f, err := logging.OpenFile(filepath.Join(config.Dir(home), "meetingrec.log"))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	d.logFile = f
	logging.Init(d.Config.Log.Format, d.Config.Log.Level, f)
	return nil
}

func runRecorder(parent context.Context, cfg config.Config, startNow bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	logger := logging.L("cli")
	statuses, cancelStatuses := services.Events.Subscribe(32)
	defer cancelStatuses()
	failures, cancelFailures := services.Events.SubscribeFailures(32)
	defer cancelFailures()

	if startNow {
		if _, err := services.Controller.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if services.Feed != nil {
		g.Go(func() error {
			return services.Feed.Serve(gctx, cfg.StatusFeed.Addr, func(addr net.Addr) {
				logger.Info("status feed ready", zap.String("url", "ws://"+addr.String()))
			})
		})
	}

	program := tea.NewProgram(tui.New(gctx, services.Controller, statuses, failures), tea.WithContext(gctx))
	g.Go(func() error {
		defer stop()
		_, err := program.Run()
		if err != nil && gctx.Err() != nil {
			return nil
		}
		return err
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Controller.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}

	if status := services.Controller.Status(); status.State.Active() {
		output.NewFormatter(os.Stdout).Warning(fmt.Sprintf("Session %s left %s in %s", status.SessionID, status.State, sessionDir(services)))
	} else if status.ReportPath != "" {
		output.NewFormatter(os.Stdout).Success("Last report: " + status.ReportPath)
	}
	return runErr
}

func sessionDir(services bootstrap.Services) string {
	if session, ok := services.Controller.Session(); ok {
		return session.Dir
	}
	return services.Config.OutputDir
}
