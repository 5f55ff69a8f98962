package tui

import "meetingrec/internal/domain"

// StatusMsg carries a status change from the controller fan-out.
type StatusMsg struct {
	Status domain.Status
}

// FailureMsg carries a failure event from the controller fan-out.
type FailureMsg struct {
	Event domain.FailureEvent
}

// ActionResultMsg reports the outcome of a controller call started by a key.
type ActionResultMsg struct {
	Action string
	Detail string
	Err    error
}

// TickMsg refreshes the elapsed recording time.
type TickMsg struct{}

// feedClosedMsg is sent when a subscription channel closes.
type feedClosedMsg struct{}

// ClearNoticeMsg clears a transient notice.
type ClearNoticeMsg struct {
	seq int
}
