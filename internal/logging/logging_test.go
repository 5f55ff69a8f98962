package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)
	defer Init("console", "info", nil)

	L("audio").Info("stream started")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("unexpected json decode error: %v (%q)", err, buf.String())
	}
	if entry[KeyComponent] != "audio" {
		t.Fatalf("unexpected component: %v", entry[KeyComponent])
	}
	if entry["msg"] != "stream started" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
}

func TestLoggerCreatedBeforeInitFollowsConfig(t *testing.T) {
	early := L("early")

	var buf bytes.Buffer
	Init("json", "info", &buf)
	defer Init("console", "info", nil)

	early.Info("after init")
	if !strings.Contains(buf.String(), `"component":"early"`) {
		t.Fatalf("expected early logger to write through new core, got %q", buf.String())
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init("console", "warn", &buf)
	defer Init("console", "info", nil)

	log := L("test")
	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info entry should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn entry in output")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"debug":   "debug",
		"WARNING": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
