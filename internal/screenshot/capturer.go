package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"meetingrec/internal/domain"
)

// CommandCapturer writes window images with ImageMagick import on X11 or
// screencapture on macOS.
type CommandCapturer struct {
	command string
}

func NewCommandCapturer(command string) *CommandCapturer {
	if command == "" {
		command = "import"
	}
	return &CommandCapturer{command: command}
}

func (c *CommandCapturer) CaptureWindow(ctx context.Context, window domain.Window, path string) error {
	if _, err := run(ctx, c.command, c.args(window, path)...); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("capture produced no image: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(path)
		return fmt.Errorf("capture produced an empty image")
	}
	return nil
}

func (c *CommandCapturer) args(window domain.Window, path string) []string {
	switch filepath.Base(c.command) {
	case "screencapture":
		if window.ID != "" {
			return []string{"-x", "-l", window.ID, path}
		}
		return []string{"-x", path}
	default:
		id := window.ID
		if id == "" {
			id = "root"
		}
		return []string{"-window", id, path}
	}
}
