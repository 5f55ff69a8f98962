package ports

import (
	"context"
	"io"
	"time"

	"meetingrec/internal/domain"
)

// DeviceConfig describes one capture device and its negotiated format.
type DeviceConfig struct {
	Source      domain.SourceKind
	InputFormat string
	Device      string
	SampleRate  int
	Channels    int
}

// AudioStream is a live capture stream producing signed 16-bit PCM.
type AudioStream interface {
	io.ReadCloser
	Stop() error
}

// AudioSource opens capture streams on audio devices.
type AudioSource interface {
	Start(ctx context.Context, cfg DeviceConfig) (AudioStream, error)
}

// Recording is an in-progress capture of one or two streams.
type Recording interface {
	// Stop flushes and finalizes every stream. Repeated calls return the same artifacts.
	Stop(ctx context.Context) ([]domain.AudioArtifact, error)
	// Losses delivers streams that ended before Stop. Closed once Stop completes.
	Losses() <-chan domain.StreamLoss
	Sources() []domain.SourceKind
	Warnings() []error
}

// Recorder starts recordings into a session directory.
type Recorder interface {
	Start(ctx context.Context, outputDir string) (Recording, error)
}

// ScreenshotTarget identifies the session a screenshot belongs to.
type ScreenshotTarget struct {
	SessionID string
	Dir       string
	StartedAt time.Time
}

// ScreenshotTaker captures window images for a session.
type ScreenshotTaker interface {
	Capture(ctx context.Context, target ScreenshotTarget, hint string) (domain.ScreenshotRecord, error)
}

// WindowResolver finds the window to capture.
type WindowResolver interface {
	Resolve(ctx context.Context, hint string) (domain.Window, error)
}

// ImageCapturer writes an image of a window to path.
type ImageCapturer interface {
	CaptureWindow(ctx context.Context, window domain.Window, path string) error
}

// Transcriber converts a finalized audio artifact into text.
type Transcriber interface {
	Transcribe(ctx context.Context, artifact domain.AudioArtifact) (domain.Transcript, error)
}

// TranscriptCorrector rewrites transcript text deterministically. Segment
// timing is never changed.
type TranscriptCorrector interface {
	Correct(transcript domain.Transcript) (domain.Transcript, error)
}

// ReportAssembler renders and writes the meeting report.
type ReportAssembler interface {
	Assemble(session domain.Session) (domain.Report, error)
}

// TranscriptWriter persists transcript side files next to the session audio.
type TranscriptWriter interface {
	SaveTranscript(dir string, transcript domain.Transcript) error
}

// StorageGuard rejects output directories that cannot hold a recording.
type StorageGuard interface {
	Check(dir string) error
}

// ExportHook runs after a report is written. Failures are reported as warnings.
type ExportHook interface {
	Name() string
	AfterExport(ctx context.Context, session domain.Session, report domain.Report) error
}

// EventSink receives controller status changes and failure events.
type EventSink interface {
	StatusChanged(status domain.Status)
	Failure(event domain.FailureEvent)
}
