// Package notify turns controller events into log lines and desktop notifications.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
)

const (
	appTitle       = "MeetingRec"
	commandTimeout = 5 * time.Second
)

// Runner executes a notification command.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Notifier implements ports.EventSink. Every failure is logged; failures and
// milestone states are also shown on the desktop when Desktop is set.
type Notifier struct {
	Desktop bool

	goos   string
	run    Runner
	logger *zap.Logger
}

type Option func(*Notifier)

func WithRunner(run Runner) Option {
	return func(n *Notifier) { n.run = run }
}

// WithPlatform overrides runtime.GOOS when choosing the notification command.
func WithPlatform(goos string) Option {
	return func(n *Notifier) { n.goos = goos }
}

func New(desktop bool, logger *zap.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = logging.L("notify")
	}
	n := &Notifier{
		Desktop: desktop,
		goos:    runtime.GOOS,
		run:     execRunner,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) StatusChanged(status domain.Status) {
	n.logger.Info("session state changed",
		zap.String(logging.KeySessionID, status.SessionID),
		zap.String(logging.KeyState, string(status.State)),
		zap.Int("screenshots", status.Shots),
	)

	if body := milestone(status); body != "" {
		n.show(appTitle, body, false)
	}
}

func (n *Notifier) Failure(event domain.FailureEvent) {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.String(logging.KeySessionID, event.SessionID),
		zap.Bool("recoverable", event.Recoverable),
		zap.String("eventId", event.ID),
	}
	if event.Recoverable {
		n.logger.Warn(event.Message, fields...)
	} else {
		n.logger.Error(event.Message, fields...)
	}

	title := appTitle + " error"
	if event.Recoverable {
		title = appTitle + " warning"
	}
	n.show(title, event.Message, !event.Recoverable)
}

func milestone(status domain.Status) string {
	switch status.State {
	case domain.SessionStateRecording:
		if status.Shots > 0 {
			return fmt.Sprintf("Screenshot %d captured", status.Shots)
		}
		return "Recording started"
	case domain.SessionStateTranscribed:
		return "Transcription complete"
	case domain.SessionStateDone:
		if status.ReportPath != "" {
			return "Report saved to " + status.ReportPath
		}
		return "Report saved"
	default:
		return ""
	}
}

func (n *Notifier) show(title, body string, critical bool) {
	if !n.Desktop || n.run == nil {
		return
	}
	name, args := command(n.goos, title, body, critical)
	if name == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := n.run(ctx, name, args...); err != nil {
		n.logger.Debug("desktop notification failed", zap.String("command", name), zap.Error(err))
	}
}

// command returns the notification command for goos, or "" when the platform
// has none.
func command(goos, title, body string, critical bool) (string, []string) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(body), escapeAppleScript(title))
		return "osascript", []string{"-e", script}
	case "linux":
		urgency := "normal"
		if critical {
			urgency = "critical"
		}
		return "notify-send", []string{"-a", appTitle, "-u", urgency, title, body}
	default:
		return "", nil
	}
}

func escapeAppleScript(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
