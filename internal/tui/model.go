// Package tui is the interactive terminal recorder.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"meetingrec/internal/domain"
	"meetingrec/internal/output"
	"meetingrec/internal/report"
	"meetingrec/internal/usecase"
)

const (
	noticeTTL = 5 * time.Second
	maxLog    = 6
)

// Controller is the subset of the session controller driven by the recorder.
type Controller interface {
	Start(ctx context.Context) (domain.Status, error)
	Stop(ctx context.Context) ([]domain.AudioArtifact, error)
	CaptureScreenshot(ctx context.Context, hint string) (domain.ScreenshotRecord, error)
	Transcribe(ctx context.Context) (domain.Transcript, error)
	CancelTranscription()
	Export(ctx context.Context, opts usecase.ExportOptions) (domain.Report, error)
	Discard() error
	Status() domain.Status
}

// Model is the root bubbletea model for the recorder.
type Model struct {
	ctx        context.Context
	controller Controller
	statuses   <-chan domain.Status
	failures   <-chan domain.FailureEvent
	now        func() time.Time

	status    domain.Status
	busy      string
	notice    string
	noticeSeq int
	errText   string
	log       []string
	width     int
	quitting  bool
}

// New creates a recorder model reading status changes and failures from the
// given subscription channels.
func New(ctx context.Context, controller Controller, statuses <-chan domain.Status, failures <-chan domain.FailureEvent) Model {
	return Model{
		ctx:        ctx,
		controller: controller,
		statuses:   statuses,
		failures:   failures,
		now:        time.Now,
		status:     controller.Status(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForStatus(m.statuses), waitForFailure(m.failures), tick())
}

func waitForStatus(ch <-chan domain.Status) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		status, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return StatusMsg{Status: status}
	}
}

func waitForFailure(ch <-chan domain.FailureEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return FailureMsg{Event: event}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return TickMsg{} })
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return ClearNoticeMsg{seq: seq} })
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case StatusMsg:
		m.status = msg.Status
		if msg.Status.State == domain.SessionStateRecording {
			m.errText = ""
		}
		return m, waitForStatus(m.statuses)

	case FailureMsg:
		m.appendLog(output.Failure(msg.Event))
		if !msg.Event.Recoverable {
			m.errText = msg.Event.Message
		}
		return m, waitForFailure(m.failures)

	case ActionResultMsg:
		if m.busy == msg.Action {
			m.busy = ""
		}
		if msg.Err != nil {
			m.errText = fmt.Sprintf("%s: %v", msg.Action, msg.Err)
			return m, nil
		}
		m.status = m.controller.Status()
		if msg.Detail == "" {
			return m, nil
		}
		m.appendLog(msg.Detail)
		return m.setNotice(msg.Detail)

	case TickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case ClearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case feedClosedMsg:
		return m, nil
	}

	return m, nil
}

func (m *Model) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLog {
		m.log = m.log[len(m.log)-maxLog:]
	}
}

func (m Model) setNotice(text string) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	return m, clearNoticeCmd(m.noticeSeq)
}

// handleKey processes key presses. Long-running controller calls run as
// commands so the view keeps updating while they block.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyQuit || key == KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	state := m.status.State
	switch key {
	case KeyStart:
		if state.Active() {
			return m, nil
		}
		return m.run("start", func() (string, error) {
			status, err := m.controller.Start(m.ctx)
			if err != nil {
				return "", err
			}
			return "Recording into " + strings.Join(sourceNames(status.Sources), "+"), nil
		})

	case KeyScreenshot, KeyShot:
		if state != domain.SessionStateRecording {
			return m, nil
		}
		// Screenshots never set busy; several may be in flight.
		return m, actionCmd("screenshot", func() (string, error) {
			record, err := m.controller.CaptureScreenshot(m.ctx, "")
			if err != nil {
				return "", err
			}
			return "Screenshot at " + report.Timestamp(record.Offset), nil
		})

	case KeyStop:
		if state != domain.SessionStateRecording {
			return m, nil
		}
		return m.run("stop", func() (string, error) {
			artifacts, err := m.controller.Stop(m.ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Stopped, %d audio files", len(artifacts)), nil
		})

	case KeyTranscribe:
		if state != domain.SessionStateStopped {
			return m, nil
		}
		return m.run("transcribe", func() (string, error) {
			transcript, err := m.controller.Transcribe(m.ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Transcribed %d segments", len(transcript.Segments)), nil
		})

	case KeyCancel:
		if state == domain.SessionStateTranscribing {
			m.controller.CancelTranscription()
		}
		return m, nil

	case KeyExport, KeyExportBare:
		if state != domain.SessionStateStopped && state != domain.SessionStateTranscribed && state != domain.SessionStateTranscribing {
			return m, nil
		}
		opts := usecase.ExportOptions{WithoutTranscript: key == KeyExportBare}
		export := func() (string, error) {
			rep, err := m.controller.Export(m.ctx, opts)
			if err != nil {
				return "", err
			}
			return "Report saved to " + rep.Path, nil
		}
		if state == domain.SessionStateTranscribing {
			return m, actionCmd("export", export)
		}
		return m.run("export", export)

	case KeyDiscard:
		if state != domain.SessionStateStopped && state != domain.SessionStateTranscribed && state != domain.SessionStateFailed {
			return m, nil
		}
		return m.run("discard", func() (string, error) {
			if err := m.controller.Discard(); err != nil {
				return "", err
			}
			return "Session discarded", nil
		})
	}

	return m, nil
}

func (m Model) run(action string, fn func() (string, error)) (tea.Model, tea.Cmd) {
	if m.busy != "" {
		return m, nil
	}
	m.busy = action
	m.errText = ""
	return m, actionCmd(action, fn)
}

func actionCmd(action string, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		detail, err := fn()
		return ActionResultMsg{Action: action, Detail: detail, Err: err}
	}
}

// View renders the recorder.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sections []string
	sections = append(sections, output.TitleStyle.Render("MEETINGREC"))
	sections = append(sections, output.Status(m.status, m.now()))

	if m.busy != "" {
		sections = append(sections, output.DimStyle.Render(m.busy+"..."))
	}
	if m.notice != "" {
		sections = append(sections, output.OKStyle.Render(m.notice))
	}
	if m.errText != "" {
		sections = append(sections, output.ErrorStyle.Render(m.errText))
	}
	if len(m.log) > 0 {
		sections = append(sections, "")
		sections = append(sections, m.log...)
	}

	sections = append(sections, "", m.renderFooter())
	return strings.Join(sections, "\n") + "\n"
}

func (m Model) renderFooter() string {
	switch m.status.State {
	case domain.SessionStateRecording:
		return output.KeyHelp([2]string{"space", "screenshot"}, [2]string{"x", "stop"}, [2]string{"q", "quit"})
	case domain.SessionStateStopped:
		return output.KeyHelp([2]string{"t", "transcribe"}, [2]string{"e", "export"}, [2]string{"d", "discard"}, [2]string{"q", "quit"})
	case domain.SessionStateTranscribing:
		return output.KeyHelp([2]string{"c", "cancel"}, [2]string{"e", "export after"}, [2]string{"E", "export audio only"}, [2]string{"q", "quit"})
	case domain.SessionStateTranscribed:
		return output.KeyHelp([2]string{"e", "export"}, [2]string{"d", "discard"}, [2]string{"q", "quit"})
	case domain.SessionStateFailed:
		return output.KeyHelp([2]string{"d", "discard"}, [2]string{"q", "quit"})
	default:
		return output.KeyHelp([2]string{"r", "record"}, [2]string{"q", "quit"})
	}
}

func sourceNames(sources []domain.SourceKind) []string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return names
}
