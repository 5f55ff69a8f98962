package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"meetingrec/internal/catalog"
	"meetingrec/internal/config"
	"meetingrec/internal/preflight"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(&Dependencies{})
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	return home
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "meetingrec dev") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConfigInitThenShow(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom", "config.yaml")

	if _, err := execute(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	_, err := execute(t, "--config", path, "config", "init")
	if !errors.Is(err, config.ErrConfigExists) {
		t.Fatalf("expected exists error, got %v", err)
	}

	t.Setenv("MEETINGREC_TRANSCRIPTION_API_KEY", "sk-secret")
	out, err := execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if strings.Contains(out, "sk-secret") || !strings.Contains(out, "********") {
		t.Fatalf("api key should be masked:\n%s", out)
	}
	if !strings.Contains(out, "folder_template:") {
		t.Fatalf("unexpected show output:\n%s", out)
	}
}

func TestListCommand(t *testing.T) {
	home := isolate(t)
	dbPath := filepath.Join(home, "catalog.sqlite")
	t.Setenv("MEETINGREC_STORAGE_CATALOG_PATH", dbPath)

	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No meetings") {
		t.Fatalf("unexpected empty output: %q", out)
	}

	store, err := catalog.Open(dbPath)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	for i, id := range []string{"older", "newer"} {
		err := store.Record(context.Background(), catalog.Meeting{
			ID:         id,
			Dir:        filepath.Join(home, id),
			StartedAt:  time.Date(2026, 3, 1+i, 9, 0, 0, 0, time.UTC),
			Duration:   time.Minute,
			ReportPath: filepath.Join(home, id, id+"_report.md"),
			ExportedAt: time.Date(2026, 3, 1+i, 10, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err = execute(t, "list", "--limit", "1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "newer_report.md") || strings.Contains(out, "older_report.md") {
		t.Fatalf("expected only the newest meeting:\n%s", out)
	}
}

func TestDoctorReportsMissingPrerequisites(t *testing.T) {
	home := isolate(t)
	deps := &Dependencies{Config: config.Default(home)}
	deps.Config.OutputDir = filepath.Join(home, "meetings")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	runner := preflight.Runner{LookPath: func(string) (string, error) { return "", errors.New("missing") }}
	err := runDoctor(cmd, deps, runner)
	if !errors.Is(err, errPrerequisites) {
		t.Fatalf("expected prerequisites error, got %v", err)
	}
	if !strings.Contains(out.String(), "ffmpeg") || !strings.Contains(out.String(), "using defaults") {
		t.Fatalf("unexpected doctor output:\n%s", out.String())
	}
}

func TestWatchRequiresAddress(t *testing.T) {
	isolate(t)

	_, err := execute(t, "watch")
	if err == nil || !strings.Contains(err.Error(), "no status feed address") {
		t.Fatalf("unexpected error: %v", err)
	}
}
