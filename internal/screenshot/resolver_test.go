package screenshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"meetingrec/internal/domain"
)

const fakeXdotool = `#!/usr/bin/env bash
case "$1" in
  search) [ "$4" = "Zoom" ] && echo 111 && echo 222 && exit 0; exit 1 ;;
  getactivewindow) echo 333 ;;
  getwindowname) echo "Window $2" ;;
  *) exit 2 ;;
esac
`

func TestXdotoolResolverUsesHint(t *testing.T) {
	t.Parallel()

	resolver := NewXdotoolResolver(writeScript(t, "xdotool", fakeXdotool))
	window, err := resolver.Resolve(context.Background(), "Zoom")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if window.ID != "111" || window.Title != "Window 111" {
		t.Fatalf("unexpected window: %+v", window)
	}
}

func TestXdotoolResolverFallsBackToActiveWindow(t *testing.T) {
	t.Parallel()

	resolver := NewXdotoolResolver(writeScript(t, "xdotool", fakeXdotool))
	window, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if window.ID != "333" {
		t.Fatalf("unexpected window: %+v", window)
	}
}

func TestXdotoolResolverMissingWindow(t *testing.T) {
	t.Parallel()

	resolver := NewXdotoolResolver(writeScript(t, "xdotool", fakeXdotool))
	_, err := resolver.Resolve(context.Background(), "Teams")
	if !errors.Is(err, domain.ErrCaptureTargetNotFound) {
		t.Fatalf("expected capture target not found, got %v", err)
	}
}

func TestNewResolverSelectsByCommand(t *testing.T) {
	t.Parallel()

	if _, ok := NewResolver("/usr/bin/osascript").(*OSAScriptResolver); !ok {
		t.Fatalf("expected osascript resolver")
	}
	if _, ok := NewResolver("xdotool").(*XdotoolResolver); !ok {
		t.Fatalf("expected xdotool resolver")
	}
}

func TestCommandCapturerImportArgs(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "import", "#!/usr/bin/env bash\n[ \"$1\" = \"-window\" ] || exit 1\nprintf '%s' \"$2\" > \"$3\"\n")
	capturer := NewCommandCapturer(script)

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := capturer.CaptureWindow(context.Background(), domain.Window{ID: "777"}, path); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "777" {
		t.Fatalf("unexpected window arg: %q", string(data))
	}

	rootPath := filepath.Join(t.TempDir(), "root.png")
	if err := capturer.CaptureWindow(context.Background(), domain.Window{}, rootPath); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if data, _ := os.ReadFile(rootPath); string(data) != "root" {
		t.Fatalf("expected root window fallback, got %q", string(data))
	}
}

func TestCommandCapturerRejectsEmptyImage(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "import", "#!/usr/bin/env bash\n: > \"$3\"\n")
	capturer := NewCommandCapturer(script)

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := capturer.CaptureWindow(context.Background(), domain.Window{ID: "1"}, path); err == nil {
		t.Fatalf("expected empty image error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected empty image to be removed")
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
