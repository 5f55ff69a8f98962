package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"meetingrec/internal/catalog"
	"meetingrec/internal/domain"
	"meetingrec/internal/preflight"
)

func TestStatusRecording(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	line := Status(domain.Status{
		State:     domain.SessionStateRecording,
		StartedAt: started,
		Sources:   []domain.SourceKind{domain.SourceMicrophone, domain.SourceSystem},
		Shots:     3,
	}, started.Add(75*time.Second))

	for _, want := range []string{"REC", "01:15", "microphone+system", "3 screenshots"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestStatusFailedShowsError(t *testing.T) {
	t.Parallel()

	line := Status(domain.Status{State: domain.SessionStateFailed, LastError: "all streams lost"}, time.Now())
	if !strings.Contains(line, "failed") || !strings.Contains(line, "all streams lost") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestFailureLabels(t *testing.T) {
	t.Parallel()

	warn := Failure(domain.FailureEvent{Kind: domain.ErrorKindStreamLost, Message: "system audio lost", Recoverable: true})
	if !strings.Contains(warn, "warning") || !strings.Contains(warn, "[stream_lost]") {
		t.Fatalf("unexpected warning: %q", warn)
	}
	fatal := Failure(domain.FailureEvent{Kind: domain.ErrorKindIOFailure, Message: "disk full"})
	if !strings.Contains(fatal, "error") || !strings.Contains(fatal, "disk full") {
		t.Fatalf("unexpected error: %q", fatal)
	}
}

func TestMeetingsListing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Meetings(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No meetings") {
		t.Fatalf("unexpected empty listing: %q", buf.String())
	}

	buf.Reset()
	err := Meetings(&buf, []catalog.Meeting{{
		ID:            "m1",
		StartedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Duration:      61 * time.Minute,
		Screenshots:   4,
		HasTranscript: true,
		ReportPath:    "/meetings/m1/m1_report.md",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"1 meetings", "1:01:00", " 4 shots", "transcript", "/meetings/m1/m1_report.md"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestChecks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Checks(&buf, preflight.Result{Checks: []preflight.Check{
		{Name: "ffmpeg", Passed: true, Required: true, Message: "/usr/bin/ffmpeg"},
		{Name: "transcription_api_key", Message: "not set"},
		{Name: "disk_space", Required: true, Message: "insufficient disk space"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected lines: %q", lines)
	}
	if !strings.Contains(lines[0], "ok") || !strings.Contains(lines[1], "warn") || !strings.Contains(lines[2], "FAIL") {
		t.Fatalf("unexpected marks: %q", lines)
	}
}

func TestFormatter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.Success("report saved")
	f.Error("disk full")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "report saved") || !strings.HasSuffix(lines[1], "disk full") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
