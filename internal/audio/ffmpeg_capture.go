package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"meetingrec/internal/ports"
)

const (
	startupGrace = 250 * time.Millisecond
	stopGrace    = 1200 * time.Millisecond
)

// FFMPEGSource opens device streams as raw s16le PCM through ffmpeg.
type FFMPEGSource struct {
	command string
}

func NewFFMPEGSource(command string) *FFMPEGSource {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGSource{command: command}
}

func (c *FFMPEGSource) Start(ctx context.Context, cfg ports.DeviceConfig) (ports.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.Device == "" {
		cfg.Device = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.Device,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	// The recording outlives the request that started it, so the process is
	// not bound to ctx. Stop ends it.
	cmd := exec.Command(c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// A plain pipe instead of StdoutPipe: Wait must not close the read side
	// before the pump has drained what ffmpeg flushed on SIGINT.
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	cmd.Stdout = writer
	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	_ = writer.Close()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = reader.Close()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		_ = reader.Close()
		return nil, ctx.Err()
	case <-time.After(startupGrace):
	}

	return &ffmpegStream{
		stdout:  reader,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegStream struct {
	stdout *os.File
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Close stops the process and releases the read side of the pipe.
func (s *ffmpegStream) Close() error {
	stopErr := s.Stop()
	s.closeOnce.Do(func() {
		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = err
		}
	})
	if stopErr != nil {
		return stopErr
	}
	return s.closeErr
}

// Stop asks ffmpeg to flush and exit, killing it if it does not. The read side
// stays open so buffered PCM can still be drained until EOF.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
