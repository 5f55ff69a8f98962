package statusfeed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"meetingrec/internal/domain"
)

func TestWatchReceivesLatestStatusAndFailures(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	hub.StatusChanged(domain.Status{State: domain.SessionStateRecording, SessionID: "m1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan Message, 8)
	watchErr := make(chan error, 1)
	feedURL := "ws" + strings.TrimPrefix(server.URL, "http")
	go func() {
		watchErr <- Watch(ctx, feedURL, func(msg Message) { messages <- msg })
	}()

	first := receive(t, messages)
	if first.Type != TypeStatus || first.Status.State != domain.SessionStateRecording || first.Status.SessionID != "m1" {
		t.Fatalf("unexpected first message: %+v", first)
	}

	hub.Failure(domain.FailureEvent{Kind: domain.ErrorKindCaptureTargetNotFound, Message: "no window", Recoverable: true})
	second := receive(t, messages)
	if second.Type != TypeFailure || second.Failure.Kind != domain.ErrorKindCaptureTargetNotFound || !second.Failure.Recoverable {
		t.Fatalf("unexpected failure message: %+v", second)
	}

	cancel()
	select {
	case err := <-watchErr:
		if err != nil {
			t.Fatalf("unexpected watch error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not return after cancel")
	}
}

func TestHubRejectsBrowserOrigins(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	req := httptest.NewRequest("GET", Path, nil)
	req.Header.Set("Origin", "https://example.com")
	if hub.upgrader.CheckOrigin(req) {
		t.Fatalf("expected foreign origin to be refused")
	}
	req.Header.Del("Origin")
	if !hub.upgrader.CheckOrigin(req) {
		t.Fatalf("expected local client to be accepted")
	}
}

func TestURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		":7717":                     "ws://127.0.0.1:7717/events",
		"localhost:9000":            "ws://localhost:9000/events",
		"ws://10.0.0.2:7717/events": "ws://10.0.0.2:7717/events",
	}
	for in, want := range cases {
		if got := URL(in); got != want {
			t.Fatalf("URL(%q) = %q, want %q", in, got, want)
		}
	}
}

func receive(t *testing.T, messages <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for feed message")
		return Message{}
	}
}
