package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
)

const (
	TranscriptJSON = "transcript.json"
	TranscriptText = "transcript.txt"
)

// Assembler writes reports and transcript side files into session directories.
type Assembler struct {
	now    func() time.Time
	logger *zap.Logger
}

func NewAssembler(now func() time.Time, logger *zap.Logger) *Assembler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.L("report")
	}
	return &Assembler{now: now, logger: logger}
}

// FileName returns the report file name for a session.
func FileName(sessionID string) string {
	return sessionID + "_report.md"
}

// Assemble renders the session and writes the report. An existing report is
// never overwritten.
func (a *Assembler) Assemble(session domain.Session) (domain.Report, error) {
	refs := AudioArtifacts(session.Artifacts)
	if pending, found := lo.Find(refs, func(x domain.AudioArtifact) bool { return !x.Finalized }); found {
		return domain.Report{}, domain.Errorf(domain.ErrorKindArtifactNotReady, "report.assemble", "%s is not finalized", pending.Path)
	}

	markdown := Render(session, a.now())
	path := filepath.Join(session.Dir, FileName(session.ID))
	if err := writeOnce(path, []byte(markdown)); err != nil {
		return domain.Report{}, domain.E(domain.ErrorKindIOFailure, "report.assemble", err)
	}

	report := domain.Report{
		SessionID: session.ID,
		Path:      path,
		Markdown:  markdown,
		AudioRefs: lo.Map(refs, func(x domain.AudioArtifact, _ int) string {
			return relPath(session.Dir, x.Path)
		}),
		Screenshots: lo.Map(session.Screenshots, func(x domain.ScreenshotRecord, _ int) string {
			return relPath(session.Dir, x.Path)
		}),
		HasTranscript: session.Transcript != nil,
	}
	a.logger.Info("report written",
		zap.String(logging.KeySessionID, session.ID),
		zap.String(logging.KeyPath, path),
		zap.Int("screenshots", len(report.Screenshots)),
		zap.Bool("transcript", report.HasTranscript),
	)
	return report, nil
}

// SaveTranscript writes transcript.json and a [MM:SS]-prefixed transcript.txt.
func (a *Assembler) SaveTranscript(dir string, transcript domain.Transcript) error {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return domain.E(domain.ErrorKindIOFailure, "report.transcript", err)
	}
	if err := writeAtomic(filepath.Join(dir, TranscriptJSON), data); err != nil {
		return domain.E(domain.ErrorKindIOFailure, "report.transcript", err)
	}
	if err := writeAtomic(filepath.Join(dir, TranscriptText), []byte(PlainText(transcript))); err != nil {
		return domain.E(domain.ErrorKindIOFailure, "report.transcript", err)
	}
	return nil
}

// PlainText renders a transcript one segment per line.
func PlainText(transcript domain.Transcript) string {
	if !transcript.Segmented() {
		return strings.TrimSpace(transcript.Text) + "\n"
	}
	var b strings.Builder
	for _, seg := range transcript.Segments {
		fmt.Fprintf(&b, "[%s]: %s\n", Timestamp(seg.Start), seg.Text)
	}
	return b.String()
}

func writeOnce(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
