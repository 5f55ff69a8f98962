package usecase

import (
	"context"

	"go.uber.org/zap"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
)

// watchLosses reacts to capture streams ending before Stop. A lost stream
// with others still running is a warning; losing the last stream, or a disk
// failure, ends the recording and fails the session.
func (c *SessionController) watchLosses(s *activeSession) {
	defer close(s.lossDone)

	for loss := range s.recording.Losses() {
		err := loss.Err
		if err == nil {
			err = domain.Errorf(domain.ErrorKindStreamLost, "audio.capture", "%s stream ended", loss.Source)
		}

		if loss.Remaining > 0 && domain.KindOf(err) != domain.ErrorKindIOFailure {
			c.logger.Warn("audio stream lost, continuing",
				zap.String(logging.KeySessionID, s.data.ID),
				zap.String(logging.KeySource, string(loss.Source)),
				zap.Int("remaining", loss.Remaining),
				zap.Error(err),
			)
			c.failure(s.data.ID, err, true)
			continue
		}

		c.abortRecording(s, err)
	}
}

func (c *SessionController) abortRecording(s *activeSession, cause error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.current != s || s.data.State != domain.SessionStateRecording {
		c.mu.Unlock()
		return
	}
	s.data.State = domain.SessionStateStopping
	c.mu.Unlock()

	s.captures.Wait()
	artifacts, err := s.recording.Stop(context.Background())
	if err != nil {
		c.logger.Error("finalizing after stream loss", zap.String(logging.KeySessionID, s.data.ID), zap.Error(err))
	}

	c.mu.Lock()
	s.data.Artifacts = artifacts
	s.data.StoppedAt = c.now()
	s.data.State = domain.SessionStateFailed
	s.data.LastError = cause.Error()
	status := s.status()
	c.mu.Unlock()

	c.logger.Error("recording failed", zap.String(logging.KeySessionID, s.data.ID), zap.Error(cause))
	c.failure(s.data.ID, cause, false)
	c.events.StatusChanged(status)
}
