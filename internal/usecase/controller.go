package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
	"meetingrec/internal/ports"
)

var ErrNoActiveSession = domain.Errorf(domain.ErrorKindInvalidState, "", "no active meeting session")

const lockPollInterval = 5 * time.Millisecond

// Config is read once per session start.
type Config struct {
	OutputDir      string
	FolderTemplate string
}

// Dependencies are the collaborators a SessionController sequences.
// Corrector, Transcripts, Storage, Hooks, Events, Clock and Logger are optional.
type Dependencies struct {
	Recorder    ports.Recorder
	Screenshots ports.ScreenshotTaker
	Transcriber ports.Transcriber
	Assembler   ports.ReportAssembler
	Corrector   ports.TranscriptCorrector
	Transcripts ports.TranscriptWriter
	Storage     ports.StorageGuard
	Hooks       []ports.ExportHook
	Events      ports.EventSink
	Clock       func() time.Time
	Logger      *zap.Logger
}

// ExportOptions controls Export.
type ExportOptions struct {
	// WithoutTranscript leaves any transcript out of the report. Export then
	// fails with InvalidState instead of waiting for a transcription in flight.
	WithoutTranscript bool
}

// SessionController owns one meeting at a time: start, stop, transcribe and
// export run strictly in that order and never overlap.
type SessionController struct {
	recorder    ports.Recorder
	screenshots ports.ScreenshotTaker
	transcriber ports.Transcriber
	assembler   ports.ReportAssembler
	storage     ports.StorageGuard
	hooks       []ports.ExportHook
	events      ports.EventSink
	finalizer   transcriptFinalizer
	cfg         Config
	now         func() time.Time
	logger      *zap.Logger

	// opMu serializes lifecycle operations; mu guards session data.
	opMu sync.Mutex

	mu         sync.Mutex
	current    *activeSession
	lastReport string
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if deps.Events == nil {
		deps.Events = nopSink{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.L("session")
	}
	return &SessionController{
		recorder:    deps.Recorder,
		screenshots: deps.Screenshots,
		transcriber: deps.Transcriber,
		assembler:   deps.Assembler,
		storage:     deps.Storage,
		hooks:       deps.Hooks,
		events:      deps.Events,
		finalizer:   newTranscriptFinalizer(deps.Corrector, deps.Transcripts, deps.Logger),
		cfg:         cfg,
		now:         deps.Clock,
		logger:      deps.Logger,
	}
}

// Start allocates a session directory and begins recording into it.
func (c *SessionController) Start(ctx context.Context) (domain.Status, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if s := c.current; s != nil {
		id, state := s.data.ID, s.data.State
		c.mu.Unlock()
		return c.Status(), domain.Errorf(domain.ErrorKindAlreadyActive, "session.start", "session %s is %s", id, state)
	}
	c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.Check(c.cfg.OutputDir); err != nil {
			c.failure("", err, true)
			return c.Status(), err
		}
	}

	dir, err := allocateSessionDir(c.cfg.OutputDir, c.cfg.FolderTemplate, c.now())
	if err != nil {
		err = domain.E(domain.ErrorKindIOFailure, "session.start", err)
		c.failure("", err, true)
		return c.Status(), err
	}
	id := filepath.Base(dir)

	recording, err := c.recorder.Start(ctx, dir)
	if err != nil {
		// Leaves the directory alone if anything was written into it.
		_ = os.Remove(dir)
		c.logger.Error("recording did not start", zap.String(logging.KeySessionID, id), zap.Error(err))
		c.failure(id, err, true)
		return c.Status(), err
	}

	session := &activeSession{
		data: domain.Session{
			ID:        id,
			State:     domain.SessionStateRecording,
			Dir:       dir,
			StartedAt: c.now(),
		},
		recording: recording,
		sources:   recording.Sources(),
		lossDone:  make(chan struct{}),
	}

	c.mu.Lock()
	c.current = session
	status := session.status()
	c.mu.Unlock()

	c.logger.Info("recording started",
		zap.String(logging.KeySessionID, id),
		zap.String(logging.KeyPath, dir),
		zap.Any("sources", session.sources),
	)
	c.events.StatusChanged(status)
	for _, warning := range recording.Warnings() {
		c.failure(id, warning, true)
	}

	go c.watchLosses(session)
	return status, nil
}

// Stop flushes and finalizes the recording. Calls after the first return the
// same artifacts.
func (c *SessionController) Stop(ctx context.Context) ([]domain.AudioArtifact, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stopLocked(ctx)
}

func (c *SessionController) stopLocked(ctx context.Context) ([]domain.AudioArtifact, error) {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if s.data.State != domain.SessionStateRecording {
		artifacts := append([]domain.AudioArtifact(nil), s.data.Artifacts...)
		c.mu.Unlock()
		return artifacts, nil
	}
	s.data.State = domain.SessionStateStopping
	c.mu.Unlock()

	s.captures.Wait()
	c.mu.Lock()
	status := s.status()
	c.mu.Unlock()
	c.events.StatusChanged(status)

	artifacts, err := s.recording.Stop(ctx)

	c.mu.Lock()
	s.data.Artifacts = artifacts
	s.data.StoppedAt = c.now()
	s.data.State = domain.SessionStateStopped
	if err != nil {
		s.data.State = domain.SessionStateFailed
		s.data.LastError = err.Error()
	}
	status = s.status()
	result := append([]domain.AudioArtifact(nil), artifacts...)
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("recording could not be finalized", zap.String(logging.KeySessionID, status.SessionID), zap.Error(err))
		c.failure(status.SessionID, err, false)
	} else {
		c.logger.Info("recording stopped", zap.String(logging.KeySessionID, status.SessionID), zap.Int("artifacts", len(result)))
	}
	c.events.StatusChanged(status)
	return result, err
}

// CaptureScreenshot grabs a window image for the recording session. It never
// waits on lifecycle operations, so audio capture is unaffected. Stop waits
// for captures already in flight, so every returned record is in the session.
func (c *SessionController) CaptureScreenshot(ctx context.Context, hint string) (domain.ScreenshotRecord, error) {
	c.mu.Lock()
	s := c.current
	if s == nil || s.data.State != domain.SessionStateRecording {
		state := domain.SessionStateIdle
		if s != nil {
			state = s.data.State
		}
		c.mu.Unlock()
		return domain.ScreenshotRecord{}, domain.Errorf(domain.ErrorKindInvalidState, "session.screenshot", "cannot capture while %s", state)
	}
	s.captures.Add(1)
	defer s.captures.Done()
	target := ports.ScreenshotTarget{SessionID: s.data.ID, Dir: s.data.Dir, StartedAt: s.data.StartedAt}
	c.mu.Unlock()

	record, err := c.screenshots.Capture(ctx, target, hint)
	if err != nil {
		c.logger.Warn("screenshot missed", zap.String(logging.KeySessionID, target.SessionID), zap.Error(err))
		c.failure(target.SessionID, err, true)
		return domain.ScreenshotRecord{}, err
	}

	c.mu.Lock()
	s.addScreenshot(record)
	status := s.status()
	c.mu.Unlock()

	c.events.StatusChanged(status)
	return record, nil
}

// Transcribe sends the primary audio artifact for transcription. On failure
// the session returns to stopped and can still be exported.
func (c *SessionController) Transcribe(ctx context.Context) (domain.Transcript, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return domain.Transcript{}, ErrNoActiveSession
	}
	if s.data.State != domain.SessionStateStopped {
		state := s.data.State
		c.mu.Unlock()
		return domain.Transcript{}, domain.Errorf(domain.ErrorKindInvalidState, "session.transcribe", "cannot transcribe while %s", state)
	}
	artifact, ok := primaryArtifact(s.data.Artifacts)
	if !ok {
		c.mu.Unlock()
		return domain.Transcript{}, domain.Errorf(domain.ErrorKindArtifactNotReady, "session.transcribe", "session has no audio")
	}
	transcribeCtx, cancel := context.WithCancel(ctx)
	s.cancelTranscribe = cancel
	s.data.State = domain.SessionStateTranscribing
	s.data.LastError = ""
	id, dir := s.data.ID, s.data.Dir
	status := s.status()
	c.mu.Unlock()
	c.events.StatusChanged(status)

	c.logger.Info("transcription started", zap.String(logging.KeySessionID, id), zap.String(logging.KeyPath, artifact.Path))
	transcript, err := c.transcriber.Transcribe(transcribeCtx, artifact)
	cancel()

	var warnings []error
	if err == nil {
		transcript, warnings = c.finalizer.Finalize(id, dir, transcript)
	} else {
		switch domain.KindOf(err) {
		case domain.ErrorKindUnknown, domain.ErrorKindTranscriptionTransient:
			err = domain.E(domain.ErrorKindTranscriptionPermanent, "session.transcribe", err)
		}
	}

	c.mu.Lock()
	s.cancelTranscribe = nil
	if err != nil {
		s.data.State = domain.SessionStateStopped
		s.data.LastError = err.Error()
	} else {
		s.data.State = domain.SessionStateTranscribed
		s.data.Transcript = &transcript
	}
	status = s.status()
	c.mu.Unlock()

	for _, warning := range warnings {
		c.failure(id, warning, true)
	}
	if err != nil {
		c.logger.Warn("transcription failed", zap.String(logging.KeySessionID, id), zap.Error(err))
		c.failure(id, err, true)
		c.events.StatusChanged(status)
		return domain.Transcript{}, err
	}

	c.logger.Info("transcription finished",
		zap.String(logging.KeySessionID, id),
		zap.Int("segments", len(transcript.Segments)),
	)
	c.events.StatusChanged(status)
	return transcript, nil
}

// CancelTranscription abandons an in-flight transcription. The session goes
// back to stopped.
func (c *SessionController) CancelTranscription() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.cancelTranscribe != nil {
		c.current.cancelTranscribe()
	}
}

// Export writes the report and releases the session. While a transcription
// is running it waits, unless opts.WithoutTranscript is set.
func (c *SessionController) Export(ctx context.Context, opts ExportOptions) (domain.Report, error) {
	if opts.WithoutTranscript {
		if err := c.lockUnlessTranscribing(ctx); err != nil {
			return domain.Report{}, err
		}
	} else {
		c.opMu.Lock()
	}
	defer c.opMu.Unlock()

	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return domain.Report{}, ErrNoActiveSession
	}
	if s.data.State != domain.SessionStateStopped && s.data.State != domain.SessionStateTranscribed {
		state := s.data.State
		c.mu.Unlock()
		return domain.Report{}, domain.Errorf(domain.ErrorKindInvalidState, "session.export", "cannot export while %s", state)
	}
	s.data.State = domain.SessionStateExporting
	snapshot := s.snapshot()
	status := s.status()
	c.mu.Unlock()
	c.events.StatusChanged(status)

	if opts.WithoutTranscript {
		snapshot.Transcript = nil
	}

	report, err := c.assembler.Assemble(snapshot)
	if err != nil {
		c.mu.Lock()
		s.data.State = domain.SessionStateFailed
		s.data.LastError = err.Error()
		status = s.status()
		c.mu.Unlock()

		c.logger.Error("report export failed", zap.String(logging.KeySessionID, snapshot.ID), zap.Error(err))
		c.failure(snapshot.ID, err, false)
		c.events.StatusChanged(status)
		return domain.Report{}, err
	}

	for _, hook := range c.hooks {
		if err := hook.AfterExport(ctx, snapshot, report); err != nil {
			c.logger.Warn("export hook failed", zap.String(logging.KeySessionID, snapshot.ID), zap.String("hook", hook.Name()), zap.Error(err))
			c.failure(snapshot.ID, fmt.Errorf("%s: %w", hook.Name(), err), true)
		}
	}

	c.mu.Lock()
	s.data.State = domain.SessionStateDone
	status = s.status()
	status.ReportPath = report.Path
	c.current = nil
	c.lastReport = report.Path
	c.mu.Unlock()

	c.logger.Info("meeting exported", zap.String(logging.KeySessionID, snapshot.ID), zap.String(logging.KeyPath, report.Path))
	c.events.StatusChanged(status)
	c.events.StatusChanged(c.Status())
	return report, nil
}

// lockUnlessTranscribing takes opMu, giving up with InvalidState as soon as
// a transcription is seen running. Other lifecycle operations are waited out.
func (c *SessionController) lockUnlessTranscribing(ctx context.Context) error {
	var ticker *time.Ticker
	for {
		if c.transcribing() {
			return domain.Errorf(domain.ErrorKindInvalidState, "session.export", "transcription in progress")
		}
		// Transcribe holds opMu for its whole run, so once the lock is ours
		// the session cannot be transcribing.
		if c.opMu.TryLock() {
			return nil
		}

		if ticker == nil {
			ticker = time.NewTicker(lockPollInterval)
			defer ticker.Stop()
		}
		select {
		case <-ctx.Done():
			return domain.E(domain.ErrorKindInvalidState, "session.export", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *SessionController) transcribing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.data.State == domain.SessionStateTranscribing
}

// Discard releases a stopped, transcribed or failed session without a
// report. Files already on disk are kept.
func (c *SessionController) Discard() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	switch s.data.State {
	case domain.SessionStateStopped, domain.SessionStateTranscribed, domain.SessionStateFailed:
	default:
		state := s.data.State
		c.mu.Unlock()
		return domain.Errorf(domain.ErrorKindInvalidState, "session.discard", "cannot discard while %s", state)
	}
	c.current = nil
	c.lastReport = ""
	c.mu.Unlock()

	c.logger.Info("session discarded", zap.String(logging.KeySessionID, s.data.ID), zap.String(logging.KeyPath, s.data.Dir))
	c.events.StatusChanged(c.Status())
	return nil
}

// Shutdown abandons any transcription and flushes an active recording.
func (c *SessionController) Shutdown(ctx context.Context) error {
	c.CancelTranscription()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	recording := c.current != nil && c.current.data.State == domain.SessionStateRecording
	c.mu.Unlock()
	if !recording {
		return nil
	}
	_, err := c.stopLocked(ctx)
	return err
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle, ReportPath: c.lastReport}
	}
	return c.current.status()
}

// Session returns a copy of the current session, if any.
func (c *SessionController) Session() (domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Session{}, false
	}
	return c.current.snapshot(), true
}

func (c *SessionController) failure(sessionID string, err error, recoverable bool) {
	c.events.Failure(domain.FailureEvent{
		ID:          uuid.NewString(),
		Kind:        domain.KindOf(err),
		Message:     err.Error(),
		SessionID:   sessionID,
		Recoverable: recoverable,
		At:          c.now(),
	})
}
