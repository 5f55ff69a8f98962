package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures across components.
type ErrorKind string

const (
	ErrorKindDeviceUnavailable      ErrorKind = "device_unavailable"
	ErrorKindCaptureTargetNotFound  ErrorKind = "capture_target_not_found"
	ErrorKindArtifactNotReady       ErrorKind = "artifact_not_ready"
	ErrorKindTranscriptionTransient ErrorKind = "transcription_transient"
	ErrorKindTranscriptionPermanent ErrorKind = "transcription_permanent"
	ErrorKindTranscriptionMalformed ErrorKind = "transcription_malformed"
	ErrorKindInvalidState           ErrorKind = "invalid_state"
	ErrorKindAlreadyActive          ErrorKind = "already_active"
	ErrorKindIOFailure              ErrorKind = "io_failure"
	ErrorKindStreamLost             ErrorKind = "stream_lost"
	ErrorKindUnknown                ErrorKind = "unknown"
)

// Error carries a kind alongside the failing operation and its cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// E builds a classified error.
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches bare sentinels (no op, no cause) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrDeviceUnavailable      = &Error{Kind: ErrorKindDeviceUnavailable}
	ErrCaptureTargetNotFound  = &Error{Kind: ErrorKindCaptureTargetNotFound}
	ErrArtifactNotReady       = &Error{Kind: ErrorKindArtifactNotReady}
	ErrTranscriptionTransient = &Error{Kind: ErrorKindTranscriptionTransient}
	ErrTranscriptionPermanent = &Error{Kind: ErrorKindTranscriptionPermanent}
	ErrTranscriptionMalformed = &Error{Kind: ErrorKindTranscriptionMalformed}
	ErrInvalidState           = &Error{Kind: ErrorKindInvalidState}
	ErrAlreadyActive          = &Error{Kind: ErrorKindAlreadyActive}
	ErrIOFailure              = &Error{Kind: ErrorKindIOFailure}
	ErrStreamLost             = &Error{Kind: ErrorKindStreamLost}
)

// KindOf returns the outermost classified kind in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ErrorKindUnknown
}
