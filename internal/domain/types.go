package domain

import "time"

// SessionState models the meeting recording lifecycle.
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateRecording    SessionState = "recording"
	SessionStateStopping     SessionState = "stopping"
	SessionStateStopped      SessionState = "stopped"
	SessionStateTranscribing SessionState = "transcribing"
	SessionStateTranscribed  SessionState = "transcribed"
	SessionStateExporting    SessionState = "exporting"
	SessionStateDone         SessionState = "done"
	SessionStateFailed       SessionState = "failed"
)

// Active reports whether a session in this state blocks a new session from starting.
func (s SessionState) Active() bool {
	return s != SessionStateIdle && s != SessionStateDone
}

// SourceKind identifies where an audio artifact came from.
type SourceKind string

const (
	SourceMicrophone SourceKind = "microphone"
	SourceSystem     SourceKind = "system"
	SourceMixed      SourceKind = "mixed"
)

// AudioArtifact is one audio file produced by a capture stream or a mixdown.
type AudioArtifact struct {
	Path       string        `json:"path"`
	Source     SourceKind    `json:"source"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Bytes      int64         `json:"bytes"`
	Finalized  bool          `json:"finalized"`
	EndedEarly bool          `json:"endedEarly,omitempty"`
}

// StreamLoss reports a capture stream that ended before stop was requested.
type StreamLoss struct {
	Source    SourceKind
	Err       error
	Remaining int
}

// Window is a resolved screenshot target.
type Window struct {
	ID    string
	Title string
}

// ScreenshotRecord is one captured image associated with a session.
type ScreenshotRecord struct {
	ID          string        `json:"id"`
	Path        string        `json:"path"`
	CapturedAt  time.Time     `json:"capturedAt"`
	Offset      time.Duration `json:"offset"`
	WindowTitle string        `json:"windowTitle,omitempty"`
}

// TranscriptSegment is a time-aligned piece of transcript text.
type TranscriptSegment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Transcript is the validated result of a transcription request.
type Transcript struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments,omitempty"`
	Language string              `json:"language,omitempty"`
	Duration time.Duration       `json:"duration,omitempty"`
	Model    string              `json:"model,omitempty"`
}

// Segmented reports whether the transcript carries time alignment.
func (t Transcript) Segmented() bool {
	return len(t.Segments) > 0
}

// Session is the in-memory record of one meeting.
type Session struct {
	ID          string             `json:"id"`
	State       SessionState       `json:"state"`
	Dir         string             `json:"dir"`
	StartedAt   time.Time          `json:"startedAt"`
	StoppedAt   time.Time          `json:"stoppedAt,omitempty"`
	Screenshots []ScreenshotRecord `json:"screenshots"`
	Artifacts   []AudioArtifact    `json:"artifacts"`
	Transcript  *Transcript        `json:"transcript,omitempty"`
	LastError   string             `json:"lastError,omitempty"`
}

// Duration returns the recorded length, or zero while still recording.
func (s Session) Duration() time.Duration {
	if s.StoppedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}

// Report is the assembled markdown document for a session.
type Report struct {
	SessionID     string   `json:"sessionId"`
	Path          string   `json:"path"`
	Markdown      string   `json:"-"`
	AudioRefs     []string `json:"audioRefs"`
	Screenshots   []string `json:"screenshots"`
	HasTranscript bool     `json:"hasTranscript"`
}

// Status summarizes the controller for the UI layer.
type Status struct {
	State      SessionState `json:"state"`
	SessionID  string       `json:"sessionId,omitempty"`
	Active     bool         `json:"active"`
	StartedAt  time.Time    `json:"startedAt,omitempty"`
	Sources    []SourceKind `json:"sources,omitempty"`
	Shots      int          `json:"screenshots"`
	Message    string       `json:"message,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
	ReportPath string       `json:"reportPath,omitempty"`
}

// FailureEvent is the structured notification emitted for component failures.
type FailureEvent struct {
	ID          string    `json:"id"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	SessionID   string    `json:"sessionId,omitempty"`
	Recoverable bool      `json:"recoverable"`
	At          time.Time `json:"at"`
}
