package usecase

import (
	"go.uber.org/zap"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
	"meetingrec/internal/ports"
)

type transcriptFinalizer struct {
	corrector ports.TranscriptCorrector
	writer    ports.TranscriptWriter
	logger    *zap.Logger
}

func newTranscriptFinalizer(corrector ports.TranscriptCorrector, writer ports.TranscriptWriter, logger *zap.Logger) transcriptFinalizer {
	return transcriptFinalizer{corrector: corrector, writer: writer, logger: logger}
}

// Finalize applies corrections and writes the transcript side files. Neither
// step can fail the transcription; problems come back as warnings.
func (f transcriptFinalizer) Finalize(sessionID, dir string, transcript domain.Transcript) (domain.Transcript, []error) {
	var warnings []error

	if f.corrector != nil {
		corrected, err := f.corrector.Correct(transcript)
		if err != nil {
			f.logger.Warn("transcript corrections skipped", zap.String(logging.KeySessionID, sessionID), zap.Error(err))
			warnings = append(warnings, domain.E(domain.ErrorKindUnknown, "transcript.correct", err))
		} else {
			transcript = corrected
		}
	}

	if f.writer != nil {
		if err := f.writer.SaveTranscript(dir, transcript); err != nil {
			f.logger.Warn("transcript side files not written", zap.String(logging.KeySessionID, sessionID), zap.Error(err))
			warnings = append(warnings, err)
		}
	}

	return transcript, warnings
}
