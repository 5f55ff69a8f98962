package usecase

import (
	"context"
	"sort"
	"sync"

	"meetingrec/internal/domain"
	"meetingrec/internal/ports"
)

type activeSession struct {
	data      domain.Session
	recording ports.Recording
	sources   []domain.SourceKind

	cancelTranscribe context.CancelFunc
	lossDone         chan struct{}

	// captures counts screenshots started while recording. Add is only
	// called under the controller's mu with the state still recording.
	captures sync.WaitGroup
}

func (s *activeSession) snapshot() domain.Session {
	out := s.data
	out.Screenshots = append([]domain.ScreenshotRecord(nil), s.data.Screenshots...)
	out.Artifacts = append([]domain.AudioArtifact(nil), s.data.Artifacts...)
	if s.data.Transcript != nil {
		transcript := *s.data.Transcript
		out.Transcript = &transcript
	}
	return out
}

// addScreenshot keeps the list ordered by offset. Equal offsets keep arrival order.
func (s *activeSession) addScreenshot(record domain.ScreenshotRecord) {
	shots := s.data.Screenshots
	at := sort.Search(len(shots), func(i int) bool { return shots[i].Offset > record.Offset })
	shots = append(shots, domain.ScreenshotRecord{})
	copy(shots[at+1:], shots[at:])
	shots[at] = record
	s.data.Screenshots = shots
}

func (s *activeSession) status() domain.Status {
	return domain.Status{
		State:     s.data.State,
		SessionID: s.data.ID,
		Active:    s.data.State.Active(),
		StartedAt: s.data.StartedAt,
		Sources:   append([]domain.SourceKind(nil), s.sources...),
		Shots:     len(s.data.Screenshots),
		LastError: s.data.LastError,
	}
}

// primaryArtifact picks the file sent for transcription: the mixdown, else
// the microphone, else system audio.
func primaryArtifact(artifacts []domain.AudioArtifact) (domain.AudioArtifact, bool) {
	for _, source := range []domain.SourceKind{domain.SourceMixed, domain.SourceMicrophone, domain.SourceSystem} {
		for _, artifact := range artifacts {
			if artifact.Source == source {
				return artifact, true
			}
		}
	}
	return domain.AudioArtifact{}, false
}
