package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"meetingrec/internal/output"
	"meetingrec/internal/statusfeed"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the status feed of a running recorder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = deps.Config.StatusFeed.Addr
			}
			if addr == "" {
				return errors.New("no status feed address; set status_feed.addr or pass --addr")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			return statusfeed.Watch(ctx, statusfeed.URL(addr), func(msg statusfeed.Message) {
				switch {
				case msg.Status != nil:
					fmt.Fprintln(out, output.Status(*msg.Status, time.Now()))
				case msg.Failure != nil:
					fmt.Fprintln(out, output.Failure(*msg.Failure))
				}
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "status feed address (default status_feed.addr)")
	return cmd
}
