package usecase

import (
	"sync"

	"meetingrec/internal/domain"
	"meetingrec/internal/ports"
)

// Fanout delivers controller events to every registered sink and to channel
// subscribers. Slow subscribers lose events rather than stalling the controller.
type Fanout struct {
	mu       sync.RWMutex
	sinks    []ports.EventSink
	statuses map[int]chan domain.Status
	failures map[int]chan domain.FailureEvent
	nextID   int
}

func NewFanout(sinks ...ports.EventSink) *Fanout {
	f := &Fanout{
		statuses: make(map[int]chan domain.Status),
		failures: make(map[int]chan domain.FailureEvent),
	}
	for _, sink := range sinks {
		f.Add(sink)
	}
	return f
}

// Add registers another sink. Nil sinks are ignored.
func (f *Fanout) Add(sink ports.EventSink) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

// Subscribe returns a channel of status changes and a function that ends the
// subscription and closes the channel.
func (f *Fanout) Subscribe(buffer int) (<-chan domain.Status, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Status, buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.statuses[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.statuses, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// SubscribeFailures is Subscribe for failure events.
func (f *Fanout) SubscribeFailures(buffer int) (<-chan domain.FailureEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.FailureEvent, buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.failures[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.failures, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Fanout) StatusChanged(status domain.Status) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sink := range f.sinks {
		sink.StatusChanged(status)
	}
	for _, ch := range f.statuses {
		select {
		case ch <- status:
		default:
		}
	}
}

func (f *Fanout) Failure(event domain.FailureEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sink := range f.sinks {
		sink.Failure(event)
	}
	for _, ch := range f.failures {
		select {
		case ch <- event:
		default:
		}
	}
}

type nopSink struct{}

func (nopSink) StatusChanged(domain.Status) {}
func (nopSink) Failure(domain.FailureEvent) {}
