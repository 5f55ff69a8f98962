package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
	"meetingrec/internal/ports"
)

const (
	MicFileName    = "mic.wav"
	SystemFileName = "system.wav"
	MixedBaseName  = "meeting_audio"
)

// Options fixes the capture format for every recording the engine starts.
type Options struct {
	InputFormat        string
	MicDevice          string
	SystemDevice       string
	SampleRate         int
	Channels           int
	ChunkSize          int
	HeaderSyncInterval time.Duration
	Mix                bool
	MixFormat          string
}

// Engine records the microphone and, when available, system audio into
// separate wav files inside a session directory.
type Engine struct {
	source ports.AudioSource
	mixer  Mixer
	opts   Options
	logger *zap.Logger
}

func NewEngine(source ports.AudioSource, mixer Mixer, opts Options, logger *zap.Logger) *Engine {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.ChunkSize < 256 {
		opts.ChunkSize = 4096
	}
	if opts.HeaderSyncInterval <= 0 {
		opts.HeaderSyncInterval = time.Second
	}
	if opts.MixFormat == "" {
		opts.MixFormat = "wav"
	}
	if logger == nil {
		logger = logging.L("audio")
	}
	return &Engine{source: source, mixer: mixer, opts: opts, logger: logger}
}

// Start opens the capture streams. A missing microphone fails the start; a
// missing system device only downgrades the recording to microphone-only.
func (e *Engine) Start(ctx context.Context, outputDir string) (ports.Recording, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, domain.E(domain.ErrorKindIOFailure, "audio.start", err)
	}

	rec := &recording{
		dir:      outputDir,
		opts:     e.opts,
		mixer:    e.mixer,
		logger:   e.logger,
		stopping: make(chan struct{}),
	}

	mic, err := e.openTrack(ctx, domain.SourceMicrophone, e.opts.MicDevice, filepath.Join(outputDir, MicFileName))
	if err != nil {
		return nil, err
	}
	rec.tracks = append(rec.tracks, mic)

	if strings.TrimSpace(e.opts.SystemDevice) == "" {
		rec.warn(domain.Errorf(domain.ErrorKindDeviceUnavailable, "audio.start", "system audio device not configured, recording microphone only"))
	} else {
		system, err := e.openTrack(ctx, domain.SourceSystem, e.opts.SystemDevice, filepath.Join(outputDir, SystemFileName))
		if err != nil {
			rec.warn(fmt.Errorf("system audio unavailable, recording microphone only: %w", err))
		} else {
			rec.tracks = append(rec.tracks, system)
		}
	}

	rec.losses = make(chan domain.StreamLoss, len(rec.tracks))
	rec.live.Store(int32(len(rec.tracks)))
	for _, t := range rec.tracks {
		go rec.pump(t)
	}
	return rec, nil
}

func (e *Engine) openTrack(ctx context.Context, source domain.SourceKind, device, path string) (*track, error) {
	stream, err := e.source.Start(ctx, ports.DeviceConfig{
		Source:      source,
		InputFormat: e.opts.InputFormat,
		Device:      device,
		SampleRate:  e.opts.SampleRate,
		Channels:    e.opts.Channels,
	})
	if err != nil {
		return nil, domain.E(domain.ErrorKindDeviceUnavailable, "audio.start", fmt.Errorf("%s device %q: %w", source, device, err))
	}

	writer, err := createWAV(path, e.opts.SampleRate, e.opts.Channels, e.opts.HeaderSyncInterval)
	if err != nil {
		_ = stream.Close()
		return nil, domain.E(domain.ErrorKindIOFailure, "audio.start", err)
	}

	return &track{
		source: source,
		stream: stream,
		writer: writer,
		path:   path,
		done:   make(chan struct{}),
	}, nil
}

type track struct {
	source domain.SourceKind
	stream ports.AudioStream
	writer *wavWriter
	path   string
	done   chan struct{}

	// Set by the pump before done is closed.
	endedEarly bool
	err        error
}

type recording struct {
	dir    string
	opts   Options
	mixer  Mixer
	logger *zap.Logger

	tracks   []*track
	losses   chan domain.StreamLoss
	stopping chan struct{}
	live     atomic.Int32

	warnMu   sync.Mutex
	warnings []error

	stopOnce  sync.Once
	artifacts []domain.AudioArtifact
	stopErr   error
}

func (r *recording) Losses() <-chan domain.StreamLoss {
	return r.losses
}

func (r *recording) Sources() []domain.SourceKind {
	out := make([]domain.SourceKind, 0, len(r.tracks))
	for _, t := range r.tracks {
		out = append(out, t.source)
	}
	return out
}

func (r *recording) Warnings() []error {
	r.warnMu.Lock()
	defer r.warnMu.Unlock()
	return append([]error(nil), r.warnings...)
}

func (r *recording) warn(err error) {
	r.logger.Warn("audio capture degraded", zap.Error(err))
	r.warnMu.Lock()
	r.warnings = append(r.warnings, err)
	r.warnMu.Unlock()
}

// pump copies one stream to its wav file until EOF. Each stream has its own
// file and buffer, so pumps share nothing but the losses channel.
func (r *recording) pump(t *track) {
	defer close(t.done)

	buf := make([]byte, r.opts.ChunkSize)
	var streamErr error
	for {
		n, err := t.stream.Read(buf)
		if n > 0 {
			if _, writeErr := t.writer.Write(buf[:n]); writeErr != nil {
				streamErr = domain.E(domain.ErrorKindIOFailure, "audio.write", writeErr)
				// Unblock ffmpeg; nothing more can be written.
				_ = t.stream.Stop()
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				streamErr = err
			}
			break
		}
	}

	closeErr := t.writer.Close()
	remaining := int(r.live.Add(-1))

	select {
	case <-r.stopping:
		t.err = firstErr(kindOnly(streamErr, domain.ErrorKindIOFailure), wrapIO(closeErr))
		return
	default:
	}

	// Ended without a stop request: the device went away.
	t.endedEarly = true
	if streamErr == nil {
		if stopErr := t.stream.Stop(); stopErr != nil {
			streamErr = stopErr
		} else {
			streamErr = errors.New("stream ended unexpectedly")
		}
	}
	if closeErr != nil {
		streamErr = domain.E(domain.ErrorKindIOFailure, "audio.finalize", closeErr)
	}
	t.err = kindOnly(streamErr, domain.ErrorKindIOFailure)

	var lossErr error = streamErr
	if domain.KindOf(streamErr) != domain.ErrorKindIOFailure {
		lossErr = domain.E(domain.ErrorKindStreamLost, "audio.capture", fmt.Errorf("%s: %w", t.source, streamErr))
	}
	r.logger.Warn("audio stream ended early",
		zap.String(logging.KeySource, string(t.source)),
		zap.Int("remaining", remaining),
		zap.Error(lossErr),
	)
	r.losses <- domain.StreamLoss{Source: t.source, Err: lossErr, Remaining: remaining}
}

// Stop flushes every stream to disk and returns the finalized artifacts.
// Later calls return the first call's result without touching the files.
func (r *recording) Stop(ctx context.Context) ([]domain.AudioArtifact, error) {
	r.stopOnce.Do(func() {
		r.artifacts, r.stopErr = r.stop(ctx)
	})
	return append([]domain.AudioArtifact(nil), r.artifacts...), r.stopErr
}

func (r *recording) stop(ctx context.Context) ([]domain.AudioArtifact, error) {
	close(r.stopping)

	var g errgroup.Group
	for _, t := range r.tracks {
		g.Go(func() error {
			if err := t.stream.Stop(); err != nil {
				return fmt.Errorf("%s: %w", t.source, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("audio stream stop reported an error", zap.Error(err))
	}

	var stopErr error
	artifacts := make([]domain.AudioArtifact, 0, len(r.tracks)+1)
	for _, t := range r.tracks {
		<-t.done
		if err := t.stream.Close(); err != nil {
			r.logger.Debug("audio stream close", zap.String(logging.KeySource, string(t.source)), zap.Error(err))
		}
		if t.err != nil && domain.KindOf(t.err) == domain.ErrorKindIOFailure && stopErr == nil {
			stopErr = t.err
		}
		artifacts = append(artifacts, domain.AudioArtifact{
			Path:       t.path,
			Source:     t.source,
			SampleRate: r.opts.SampleRate,
			Channels:   r.opts.Channels,
			Duration:   t.writer.Duration(),
			Bytes:      t.writer.dataBytes + wavHeaderSize,
			Finalized:  t.err == nil || domain.KindOf(t.err) != domain.ErrorKindIOFailure,
			EndedEarly: t.endedEarly,
		})
	}
	close(r.losses)

	if stopErr != nil {
		return artifacts, stopErr
	}

	if mixed, ok := r.mix(ctx, artifacts); ok {
		artifacts = append(artifacts, mixed)
	}
	return artifacts, nil
}

func (r *recording) mix(ctx context.Context, artifacts []domain.AudioArtifact) (domain.AudioArtifact, bool) {
	if !r.opts.Mix || r.mixer == nil || len(artifacts) < 2 {
		return domain.AudioArtifact{}, false
	}

	inputs := make([]string, 0, len(artifacts))
	var longest time.Duration
	for _, a := range artifacts {
		if a.Duration <= 0 {
			continue
		}
		inputs = append(inputs, a.Path)
		longest = max(longest, a.Duration)
	}
	if len(inputs) < 2 {
		return domain.AudioArtifact{}, false
	}

	output := filepath.Join(r.dir, MixedBaseName+"."+r.opts.MixFormat)
	if err := r.mixer.Mix(ctx, inputs, output); err != nil {
		r.warn(fmt.Errorf("mixdown failed, keeping separate sources: %w", err))
		_ = os.Remove(output)
		return domain.AudioArtifact{}, false
	}
	info, err := os.Stat(output)
	if err != nil {
		r.warn(fmt.Errorf("mixdown output missing: %w", err))
		return domain.AudioArtifact{}, false
	}

	return domain.AudioArtifact{
		Path:       output,
		Source:     domain.SourceMixed,
		SampleRate: r.opts.SampleRate,
		Channels:   r.opts.Channels,
		Duration:   longest,
		Bytes:      info.Size(),
		Finalized:  true,
	}, true
}

func kindOnly(err error, kind domain.ErrorKind) error {
	if err == nil || domain.KindOf(err) != kind {
		return nil
	}
	return err
}

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return domain.E(domain.ErrorKindIOFailure, "audio.finalize", err)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
