package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"meetingrec/internal/config"
	"meetingrec/internal/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	home := t.TempDir()
	cfg := config.Default(home)
	cfg.OutputDir = filepath.Join(home, "meetings")
	cfg.Storage.CatalogPath = ":memory:"
	cfg.Notifications.Desktop = false
	return cfg
}

func TestBuildSuccess(t *testing.T) {
	t.Parallel()

	services, err := Build(context.Background(), testConfig(t), noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.Controller == nil || services.Events == nil || services.Catalog == nil {
		t.Fatalf("expected controller, events and catalog")
	}
	if services.Feed != nil {
		t.Fatalf("status feed should be disabled without an address")
	}
	if got := services.Controller.Status().State; got != domain.SessionStateIdle {
		t.Fatalf("unexpected initial state %s", got)
	}
}

func TestBuildWithStatusFeed(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.StatusFeed.Addr = "127.0.0.1:0"
	services, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()
	if services.Feed == nil {
		t.Fatalf("expected status feed hub")
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Rules.Path = filepath.Join(t.TempDir(), "bad.rules")
	if err := os.WriteFile(cfg.Rules.Path, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, err := Build(context.Background(), cfg)
	if err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildFailsOnIncompleteArchiveConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Archive.S3Bucket = "meetings"
	cfg.Archive.S3Region = ""

	_, err := Build(context.Background(), cfg)
	if err == nil {
		t.Fatalf("expected archive configuration error")
	}
}

func TestBuildStartFailsWithoutOutputDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg.OutputDir = filepath.Join(blocker, "meetings")
	cfg.Storage.MinFreeMB = 0

	services, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	_, err = services.Controller.Start(context.Background())
	if !errors.Is(err, domain.ErrIOFailure) {
		t.Fatalf("expected io failure, got %v", err)
	}
}

type noopEventSink struct{}

func (noopEventSink) StatusChanged(domain.Status) {}
func (noopEventSink) Failure(domain.FailureEvent) {}
