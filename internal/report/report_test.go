package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"meetingrec/internal/domain"
)

var (
	startedAt   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	generatedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
)

func sampleSession(dir string) domain.Session {
	return domain.Session{
		ID:        "2026-03-01-09-00-00-meeting",
		State:     domain.SessionStateExporting,
		Dir:       dir,
		StartedAt: startedAt,
		StoppedAt: startedAt.Add(20 * time.Second),
		Artifacts: []domain.AudioArtifact{
			{Path: filepath.Join(dir, "mic.wav"), Source: domain.SourceMicrophone, Duration: 20 * time.Second, Finalized: true},
			{Path: filepath.Join(dir, "system.wav"), Source: domain.SourceSystem, Duration: 20 * time.Second, Finalized: true},
			{Path: filepath.Join(dir, "meeting_audio.wav"), Source: domain.SourceMixed, Duration: 20 * time.Second, Finalized: true},
		},
		Screenshots: []domain.ScreenshotRecord{
			{Path: filepath.Join(dir, "screenshots", "screenshot_001_000005000ms.png"), Offset: 5 * time.Second, WindowTitle: "Slides"},
			{Path: filepath.Join(dir, "screenshots", "screenshot_002_000012000ms.png"), Offset: 12 * time.Second},
		},
	}
}

func TestRenderInterleavesScreenshotsWithSegments(t *testing.T) {
	t.Parallel()

	session := sampleSession("/meetings/m1")
	session.Transcript = &domain.Transcript{
		Text: "hello team next slide wrap up",
		Segments: []domain.TranscriptSegment{
			{Start: 0, End: 4 * time.Second, Text: "hello team"},
			{Start: 6 * time.Second, End: 10 * time.Second, Text: "next slide"},
			{Start: 15 * time.Second, End: 19 * time.Second, Text: "wrap up"},
		},
	}

	out := Render(session, generatedAt)

	order := []string{
		"# Meeting: 2026-03-01-09-00-00-meeting",
		"**Date and Time:** 2026-03-01 09:00:00",
		"**Duration:** 00:20",
		"**Sources:** microphone, system",
		"## Audio Recording",
		"- [meeting_audio.wav](meeting_audio.wav) (mixed, 00:20)",
		"## Transcript",
		"[00:00]: hello team",
		"### [00:05] Screenshot 1 - Slides",
		"![Screenshot 1](screenshots/screenshot_001_000005000ms.png)",
		"[00:06]: next slide",
		"### [00:12] Screenshot 2",
		"[00:15]: wrap up",
		"*Generated by MeetingRec on 2026-03-01 09:30:00*",
	}
	pos := 0
	for _, want := range order {
		idx := strings.Index(out[pos:], want)
		if idx < 0 {
			t.Fatalf("missing or out of order %q in:\n%s", want, out)
		}
		pos += idx + len(want)
	}
	if strings.Contains(out, "mic.wav") {
		t.Fatalf("expected mixdown to replace source references:\n%s", out)
	}
	if strings.Contains(out, "## Screenshots") {
		t.Fatalf("screenshots already interleaved, unexpected separate section:\n%s", out)
	}
	if strings.Count(out, "## Transcript") != 1 {
		t.Fatalf("expected exactly one transcript section")
	}
}

func TestRenderWithoutTranscriptKeepsScreenshotsAndAudio(t *testing.T) {
	t.Parallel()

	session := sampleSession("/meetings/m1")
	session.Artifacts = session.Artifacts[:1]
	session.Screenshots = session.Screenshots[:1]

	out := Render(session, generatedAt)
	if strings.Contains(out, "## Transcript") {
		t.Fatalf("unexpected transcript section:\n%s", out)
	}
	for _, want := range []string{
		"**Sources:** microphone\n",
		"- [mic.wav](mic.wav) (microphone, 00:20)",
		"## Screenshots",
		"![Screenshot 1](screenshots/screenshot_001_000005000ms.png)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderFlatTranscriptListsScreenshotsAfter(t *testing.T) {
	t.Parallel()

	session := sampleSession("/meetings/m1")
	session.Transcript = &domain.Transcript{Text: "  just text  "}

	out := Render(session, generatedAt)
	transcriptAt := strings.Index(out, "## Transcript\n\njust text\n")
	screenshotsAt := strings.Index(out, "## Screenshots")
	if transcriptAt < 0 || screenshotsAt < transcriptAt {
		t.Fatalf("expected flat transcript followed by screenshots:\n%s", out)
	}
}

func TestRenderEmptySession(t *testing.T) {
	t.Parallel()

	session := domain.Session{ID: "empty", Dir: "/meetings/empty"}
	out := Render(session, generatedAt)
	if !strings.Contains(out, "*No audio was recorded.*") || !strings.Contains(out, "*No screenshots were captured during this meeting.*") {
		t.Fatalf("unexpected empty render:\n%s", out)
	}
}

func TestAssembleWritesReportOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assembler := NewAssembler(func() time.Time { return generatedAt }, zap.NewNop())
	session := sampleSession(dir)

	report, err := assembler.Assemble(session)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if report.Path != filepath.Join(dir, "2026-03-01-09-00-00-meeting_report.md") {
		t.Fatalf("unexpected path: %s", report.Path)
	}
	if len(report.AudioRefs) != 1 || report.AudioRefs[0] != "meeting_audio.wav" {
		t.Fatalf("unexpected audio refs: %v", report.AudioRefs)
	}
	if len(report.Screenshots) != 2 || report.HasTranscript {
		t.Fatalf("unexpected report: %+v", report)
	}
	data, err := os.ReadFile(report.Path)
	if err != nil || string(data) != report.Markdown {
		t.Fatalf("report on disk does not match: %v", err)
	}

	if _, err := assembler.Assemble(session); !errors.Is(err, domain.ErrIOFailure) {
		t.Fatalf("expected second assemble to refuse overwrite, got %v", err)
	}
}

func TestAssembleRejectsUnfinalizedAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	session := sampleSession(dir)
	session.Artifacts = []domain.AudioArtifact{{Path: filepath.Join(dir, "mic.wav"), Source: domain.SourceMicrophone}}

	_, err := NewAssembler(nil, zap.NewNop()).Assemble(session)
	if !errors.Is(err, domain.ErrArtifactNotReady) {
		t.Fatalf("expected artifact not ready, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, FileName(session.ID))); !os.IsNotExist(statErr) {
		t.Fatalf("expected no report file")
	}
}

func TestSaveTranscriptWritesSideFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	transcript := domain.Transcript{
		Text: "hello there",
		Segments: []domain.TranscriptSegment{
			{Start: 0, End: time.Second, Text: "hello"},
			{Start: 65 * time.Second, End: 66 * time.Second, Text: "there"},
		},
	}
	if err := NewAssembler(nil, zap.NewNop()).SaveTranscript(dir, transcript); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	txt, err := os.ReadFile(filepath.Join(dir, TranscriptText))
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	if string(txt) != "[00:00]: hello\n[01:05]: there\n" {
		t.Fatalf("unexpected txt: %q", string(txt))
	}
	if _, err := os.Stat(filepath.Join(dir, TranscriptJSON)); err != nil {
		t.Fatalf("expected json transcript: %v", err)
	}
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{59*time.Second + 900*time.Millisecond, "00:59"},
		{75 * time.Second, "01:15"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tc := range cases {
		if got := Timestamp(tc.in); got != tc.want {
			t.Fatalf("Timestamp(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
