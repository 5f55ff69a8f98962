package screenshot

import (
	"context"
	"errors"
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

// DirName is the session subdirectory holding screenshots.
const DirName = "screenshots"

// Store captures window images into a session directory and stamps them with
// offsets from the session start.
type Store struct {
	resolver ports.WindowResolver
	capturer ports.ImageCapturer
	format   string
	now      func() time.Time
	logger   *zap.Logger

	mu        sync.Mutex
	sessionID string
	last      time.Duration
	count     int
}

type Option func(*Store)

// WithClock replaces the wall clock used for offsets.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(resolver ports.WindowResolver, capturer ports.ImageCapturer, format string, opts ...Option) *Store {
	if format == "" {
		format = "png"
	}
	s := &Store{
		resolver: resolver,
		capturer: capturer,
		format:   format,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.L("screenshot")
	}
	return s
}

// Capture resolves the target window and writes its image. Resolution and
// capture run outside the lock; only offset allocation is serialized, so
// concurrent calls get distinct sequence numbers and non-decreasing offsets.
func (s *Store) Capture(ctx context.Context, target ports.ScreenshotTarget, hint string) (domain.ScreenshotRecord, error) {
	window, err := s.resolver.Resolve(ctx, hint)
	if err != nil {
		if domain.KindOf(err) != domain.ErrorKindCaptureTargetNotFound {
			err = domain.E(domain.ErrorKindCaptureTargetNotFound, "screenshot.resolve", err)
		}
		s.logger.Warn("screenshot target not found", zap.String(logging.KeySessionID, target.SessionID), zap.Error(err))
		return domain.ScreenshotRecord{}, err
	}

	capturedAt, offset, seq := s.allocate(target)

	dir := filepath.Join(target.Dir, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.ScreenshotRecord{}, domain.E(domain.ErrorKindIOFailure, "screenshot.capture", err)
	}
	path := filepath.Join(dir, FileName(seq, offset, s.format))

	if err := s.capturer.CaptureWindow(ctx, window, path); err != nil {
		var pathErr *os.PathError
		kind := domain.ErrorKindCaptureTargetNotFound
		if errors.As(err, &pathErr) && !errors.Is(err, os.ErrNotExist) {
			kind = domain.ErrorKindIOFailure
		}
		err = domain.E(kind, "screenshot.capture", err)
		s.logger.Warn("screenshot capture failed", zap.String(logging.KeySessionID, target.SessionID), zap.Error(err))
		return domain.ScreenshotRecord{}, err
	}

	record := domain.ScreenshotRecord{
		ID:          uuid.NewString(),
		Path:        path,
		CapturedAt:  capturedAt,
		Offset:      offset,
		WindowTitle: window.Title,
	}
	s.logger.Debug("screenshot captured",
		zap.String(logging.KeySessionID, target.SessionID),
		zap.String(logging.KeyPath, path),
		zap.Duration("offset", offset),
	)
	return record, nil
}

func (s *Store) allocate(target ports.ScreenshotTarget) (time.Time, time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID != target.SessionID {
		s.sessionID = target.SessionID
		s.last = 0
		s.count = 0
	}

	now := s.now()
	offset := max(now.Sub(target.StartedAt), s.last, 0)
	s.last = offset
	s.count++
	return now, offset, s.count
}

// FileName encodes the sequence number and offset in milliseconds.
func FileName(seq int, offset time.Duration, format string) string {
	return fmt.Sprintf("screenshot_%03d_%09dms.%s", seq, offset.Milliseconds(), format)
}
