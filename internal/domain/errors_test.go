package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesSentinelByKind(t *testing.T) {
	t.Parallel()

	err := E(ErrorKindInvalidState, "capture", errors.New("session is stopped"))
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state match")
	}
	if errors.Is(err, ErrIOFailure) {
		t.Fatalf("unexpected io failure match")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrInvalidState) {
		t.Fatalf("expected match through wrapping")
	}
}

func TestErrorIsKeepsCauseChain(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := E(ErrorKindIOFailure, "export", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	if got := KindOf(nil); got != "" {
		t.Fatalf("unexpected kind for nil: %q", got)
	}
	if got := KindOf(errors.New("plain")); got != ErrorKindUnknown {
		t.Fatalf("unexpected kind for plain error: %q", got)
	}
	err := fmt.Errorf("wrap: %w", Errorf(ErrorKindDeviceUnavailable, "start", "no mic"))
	if got := KindOf(err); got != ErrorKindDeviceUnavailable {
		t.Fatalf("unexpected kind: %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[string]*Error{
		"start: device_unavailable: no mic": E(ErrorKindDeviceUnavailable, "start", errors.New("no mic")),
		"io_failure: boom":                  E(ErrorKindIOFailure, "", errors.New("boom")),
		"stop: invalid_state":               E(ErrorKindInvalidState, "stop", nil),
		"already_active":                    ErrAlreadyActive,
	}
	for want, err := range cases {
		if got := err.Error(); got != want {
			t.Fatalf("unexpected message: got %q want %q", got, want)
		}
	}
}

func TestSessionStateActive(t *testing.T) {
	t.Parallel()

	if SessionStateIdle.Active() || SessionStateDone.Active() {
		t.Fatalf("idle and done must not be active")
	}
	for _, state := range []SessionState{SessionStateRecording, SessionStateTranscribing, SessionStateStopped, SessionStateFailed} {
		if !state.Active() {
			t.Fatalf("expected %s to be active", state)
		}
	}
}
