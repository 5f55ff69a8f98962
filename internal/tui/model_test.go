package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"meetingrec/internal/domain"
	"meetingrec/internal/usecase"
)

type fakeController struct {
	mu        sync.Mutex
	status    domain.Status
	calls     []string
	exportOpt usecase.ExportOptions
	startErr  error
	cancelled bool
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Start(context.Context) (domain.Status, error) {
	f.record("start")
	if f.startErr != nil {
		return domain.Status{}, f.startErr
	}
	f.status = domain.Status{State: domain.SessionStateRecording, Active: true, Sources: []domain.SourceKind{domain.SourceMicrophone, domain.SourceSystem}}
	return f.status, nil
}

func (f *fakeController) Stop(context.Context) ([]domain.AudioArtifact, error) {
	f.record("stop")
	f.status = domain.Status{State: domain.SessionStateStopped, Active: true}
	return []domain.AudioArtifact{{Source: domain.SourceMicrophone}, {Source: domain.SourceSystem}, {Source: domain.SourceMixed}}, nil
}

func (f *fakeController) CaptureScreenshot(context.Context, string) (domain.ScreenshotRecord, error) {
	f.record("screenshot")
	return domain.ScreenshotRecord{Offset: 65 * time.Second}, nil
}

func (f *fakeController) Transcribe(context.Context) (domain.Transcript, error) {
	f.record("transcribe")
	return domain.Transcript{Segments: make([]domain.TranscriptSegment, 2)}, nil
}

func (f *fakeController) CancelTranscription() {
	f.cancelled = true
}

func (f *fakeController) Export(_ context.Context, opts usecase.ExportOptions) (domain.Report, error) {
	f.record("export")
	f.exportOpt = opts
	return domain.Report{Path: "/meetings/m1/m1_report.md"}, nil
}

func (f *fakeController) Discard() error {
	f.record("discard")
	return nil
}

func (f *fakeController) Status() domain.Status {
	return f.status
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, k string) (Model, tea.Msg) {
	t.Helper()
	updated, cmd := m.Update(key(k))
	model := updated.(Model)
	if cmd == nil {
		return model, nil
	}
	return model, cmd()
}

func newTestModel(ctrl *fakeController) Model {
	m := New(context.Background(), ctrl, nil, nil)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return m
}

func TestStartKeyRunsStart(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m, msg := press(t, newTestModel(ctrl), "r")
	if m.busy != "start" {
		t.Fatalf("expected busy start, got %q", m.busy)
	}
	result, ok := msg.(ActionResultMsg)
	if !ok || result.Err != nil {
		t.Fatalf("unexpected message: %#v", msg)
	}
	if result.Detail != "Recording into microphone+system" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}

	updated, _ := m.Update(result)
	m = updated.(Model)
	if m.busy != "" || m.status.State != domain.SessionStateRecording {
		t.Fatalf("unexpected model after start: busy=%q state=%s", m.busy, m.status.State)
	}
	if !strings.Contains(m.View(), "space") {
		t.Fatalf("expected recording footer in view:\n%s", m.View())
	}
}

func TestStartErrorIsShown(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{startErr: domain.Errorf(domain.ErrorKindDeviceUnavailable, "audio.start", "no microphone")}
	m, msg := press(t, newTestModel(ctrl), "r")
	updated, _ := m.Update(msg)
	m = updated.(Model)
	if !strings.Contains(m.errText, "no microphone") {
		t.Fatalf("expected error text, got %q", m.errText)
	}
	if !strings.Contains(m.View(), "no microphone") {
		t.Fatalf("expected error in view")
	}
}

func TestKeysIgnoredInWrongState(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := newTestModel(ctrl)
	for _, k := range []string{" ", "x", "t", "e", "d"} {
		var msg tea.Msg
		m, msg = press(t, m, k)
		if msg != nil {
			t.Fatalf("key %q should be ignored while idle, got %#v", k, msg)
		}
	}
	if len(ctrl.calls) != 0 {
		t.Fatalf("unexpected controller calls: %v", ctrl.calls)
	}
}

func TestScreenshotWhileRecording(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{status: domain.Status{State: domain.SessionStateRecording}}
	m := newTestModel(ctrl)
	m, msg := press(t, m, " ")
	result, ok := msg.(ActionResultMsg)
	if !ok || result.Detail != "Screenshot at 01:05" {
		t.Fatalf("unexpected message: %#v", msg)
	}
	if m.busy != "" {
		t.Fatalf("screenshots should not mark the model busy")
	}
}

func TestExportBareWhileTranscribingBypassesBusy(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{status: domain.Status{State: domain.SessionStateStopped}}
	m := newTestModel(ctrl)
	m, _ = press(t, m, "t")
	if m.busy != "transcribe" {
		t.Fatalf("expected busy transcribe, got %q", m.busy)
	}

	updated, _ := m.Update(StatusMsg{Status: domain.Status{State: domain.SessionStateTranscribing}})
	m = updated.(Model)

	_, msg := press(t, m, "E")
	result, ok := msg.(ActionResultMsg)
	if !ok || result.Action != "export" || result.Err != nil {
		t.Fatalf("unexpected message: %#v", msg)
	}
	if !ctrl.exportOpt.WithoutTranscript {
		t.Fatalf("expected export without transcript")
	}
}

func TestCancelWhileTranscribing(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := newTestModel(ctrl)
	updated, _ := m.Update(StatusMsg{Status: domain.Status{State: domain.SessionStateTranscribing}})
	m = updated.(Model)
	press(t, m, "c")
	if !ctrl.cancelled {
		t.Fatalf("expected cancellation")
	}
}

func TestFailureMessages(t *testing.T) {
	t.Parallel()

	m := newTestModel(&fakeController{})
	updated, _ := m.Update(FailureMsg{Event: domain.FailureEvent{Kind: domain.ErrorKindStreamLost, Message: "system audio lost", Recoverable: true}})
	m = updated.(Model)
	if m.errText != "" || len(m.log) != 1 {
		t.Fatalf("recoverable failure should only be logged: err=%q log=%v", m.errText, m.log)
	}

	updated, _ = m.Update(FailureMsg{Event: domain.FailureEvent{Kind: domain.ErrorKindStreamLost, Message: "all audio streams lost"}})
	m = updated.(Model)
	if m.errText != "all audio streams lost" {
		t.Fatalf("unexpected error text: %q", m.errText)
	}
}

func TestLogIsBounded(t *testing.T) {
	t.Parallel()

	m := newTestModel(&fakeController{})
	for i := 0; i < maxLog+3; i++ {
		m.appendLog("line")
	}
	if len(m.log) != maxLog {
		t.Fatalf("expected %d log lines, got %d", maxLog, len(m.log))
	}
}

func TestNoticeClearsOnlyForLatest(t *testing.T) {
	t.Parallel()

	m := newTestModel(&fakeController{})
	updated, _ := m.setNotice("first")
	m = updated.(Model)
	updated, _ = m.setNotice("second")
	m = updated.(Model)

	updated, _ = m.Update(ClearNoticeMsg{seq: 1})
	m = updated.(Model)
	if m.notice != "second" {
		t.Fatalf("stale clear removed notice")
	}
	updated, _ = m.Update(ClearNoticeMsg{seq: 2})
	m = updated.(Model)
	if m.notice != "" {
		t.Fatalf("expected notice cleared")
	}
}

func TestStatusFeedKeepsReading(t *testing.T) {
	t.Parallel()

	statuses := make(chan domain.Status, 1)
	m := New(context.Background(), &fakeController{}, statuses, nil)
	statuses <- domain.Status{State: domain.SessionStateRecording, Shots: 2}

	msg := waitForStatus(statuses)()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if m.status.Shots != 2 || cmd == nil {
		t.Fatalf("expected status applied and next read scheduled")
	}

	close(statuses)
	if _, ok := cmd().(feedClosedMsg); !ok {
		t.Fatalf("expected feed closed message")
	}
}

func TestQuit(t *testing.T) {
	t.Parallel()

	m := newTestModel(&fakeController{})
	updated, cmd := m.Update(key("q"))
	if cmd == nil || !updated.(Model).quitting {
		t.Fatalf("expected quit")
	}
}
