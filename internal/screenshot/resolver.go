package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"meetingrec/internal/domain"
	"meetingrec/internal/ports"
)

// NewResolver picks the resolver matching the configured command.
func NewResolver(command string) ports.WindowResolver {
	if filepath.Base(command) == "osascript" {
		return &OSAScriptResolver{command: command}
	}
	return NewXdotoolResolver(command)
}

// XdotoolResolver resolves X11 windows by title, or the active window when no
// hint is given.
type XdotoolResolver struct {
	command string
}

func NewXdotoolResolver(command string) *XdotoolResolver {
	if command == "" {
		command = "xdotool"
	}
	return &XdotoolResolver{command: command}
}

func (r *XdotoolResolver) Resolve(ctx context.Context, hint string) (domain.Window, error) {
	hint = strings.TrimSpace(hint)

	var (
		out []byte
		err error
	)
	if hint != "" {
		out, err = run(ctx, r.command, "search", "--onlyvisible", "--name", hint)
	} else {
		out, err = run(ctx, r.command, "getactivewindow")
	}
	if err != nil {
		return domain.Window{}, notFound(hint, err)
	}

	id := firstLine(out)
	if id == "" {
		return domain.Window{}, notFound(hint, errors.New("no matching window"))
	}

	window := domain.Window{ID: id}
	if name, err := run(ctx, r.command, "getwindowname", id); err == nil {
		window.Title = firstLine(name)
	}
	return window, nil
}

const (
	frontmostScript = `tell application "System Events" to get name of first application process whose frontmost is true`
	matchingScript  = `tell application "System Events" to get name of first application process whose name contains "%s"`
)

// OSAScriptResolver resolves the frontmost or named macOS application. The
// window ID stays empty, which screencapture treats as the whole display.
type OSAScriptResolver struct {
	command string
}

func (r *OSAScriptResolver) Resolve(ctx context.Context, hint string) (domain.Window, error) {
	hint = strings.TrimSpace(hint)
	script := frontmostScript
	if hint != "" {
		script = fmt.Sprintf(matchingScript, strings.ReplaceAll(hint, `"`, `\"`))
	}

	out, err := run(ctx, r.command, "-e", script)
	if err != nil {
		return domain.Window{}, notFound(hint, err)
	}
	title := firstLine(out)
	if title == "" {
		return domain.Window{}, notFound(hint, errors.New("no frontmost application"))
	}
	return domain.Window{Title: title}, nil
}

func notFound(hint string, err error) error {
	if hint == "" {
		return domain.E(domain.ErrorKindCaptureTargetNotFound, "screenshot.resolve", err)
	}
	return domain.E(domain.ErrorKindCaptureTargetNotFound, "screenshot.resolve", fmt.Errorf("window %q: %w", hint, err))
}

func run(ctx context.Context, command string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(command), err, msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(command), err)
	}
	return out, nil
}

func firstLine(out []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}
