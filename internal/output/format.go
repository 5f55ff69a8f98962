package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"

	"meetingrec/internal/catalog"
	"meetingrec/internal/domain"
	"meetingrec/internal/preflight"
	"meetingrec/internal/report"
)

// Status renders a one-line description of the controller state.
func Status(status domain.Status, now time.Time) string {
	switch status.State {
	case domain.SessionStateIdle:
		if status.ReportPath != "" {
			return DimStyle.Render("idle") + "  last report " + status.ReportPath
		}
		return DimStyle.Render("idle")
	case domain.SessionStateRecording:
		elapsed := "00:00"
		if !status.StartedAt.IsZero() {
			elapsed = report.Timestamp(now.Sub(status.StartedAt))
		}
		sources := strings.Join(lo.Map(status.Sources, func(s domain.SourceKind, _ int) string { return string(s) }), "+")
		return fmt.Sprintf("%s %s  %s  %d screenshots", RecordingStyle.Render("● REC"), elapsed, sources, status.Shots)
	case domain.SessionStateFailed:
		line := ErrorStyle.Render("failed")
		if status.LastError != "" {
			line += "  " + status.LastError
		}
		return line
	case domain.SessionStateDone:
		return OKStyle.Render("done") + "  " + status.ReportPath
	default:
		line := WarnStyle.Render(string(status.State))
		if status.LastError != "" {
			line += "  " + DimStyle.Render(status.LastError)
		}
		return line
	}
}

// Failure renders a failure event.
func Failure(event domain.FailureEvent) string {
	label := ErrorStyle.Render("error")
	if event.Recoverable {
		label = WarnStyle.Render("warning")
	}
	return fmt.Sprintf("%s [%s] %s", label, event.Kind, event.Message)
}

// Meetings writes the catalog listing, newest first as given.
func Meetings(w io.Writer, meetings []catalog.Meeting) error {
	if len(meetings) == 0 {
		_, err := fmt.Fprintln(w, DimStyle.Render("No meetings exported yet."))
		return err
	}
	if _, err := fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("%d meetings", len(meetings)))); err != nil {
		return err
	}
	for _, m := range meetings {
		transcript := DimStyle.Render("no transcript")
		if m.HasTranscript {
			transcript = OKStyle.Render("transcript")
		}
		_, err := fmt.Fprintf(w, "%s  %s  %2d shots  %s\n    %s\n",
			m.StartedAt.Local().Format("2006-01-02 15:04"),
			report.Timestamp(m.Duration),
			m.Screenshots,
			transcript,
			DimStyle.Render(m.ReportPath),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Checks writes preflight results, one line per check.
func Checks(w io.Writer, result preflight.Result) error {
	for _, check := range result.Checks {
		mark := OKStyle.Render("ok  ")
		if !check.Passed {
			mark = WarnStyle.Render("warn")
			if check.Required {
				mark = ErrorStyle.Render("FAIL")
			}
		}
		if _, err := fmt.Fprintf(w, "%s %-22s %s\n", mark, check.Name, check.Message); err != nil {
			return err
		}
	}
	return nil
}

// KeyHelp renders "key desc" pairs for a footer.
func KeyHelp(pairs ...[2]string) string {
	parts := lo.Map(pairs, func(p [2]string, _ int) string {
		return KeyStyle.Render(p[0]) + " " + DimStyle.Render(p[1])
	})
	return strings.Join(parts, "  ")
}

// Formatter writes styled one-line messages.
type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintln(f.w, DimStyle.Render("info")+"  "+msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintln(f.w, OKStyle.Render("ok")+"    "+msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintln(f.w, WarnStyle.Render("warn")+"  "+msg)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintln(f.w, ErrorStyle.Render("error")+" "+msg)
}
