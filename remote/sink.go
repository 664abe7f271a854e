package remote

import "sync"

// EventSink is the producing side of a Handle's event channel. Backends
// emit from their reader goroutine; Shutdown unblocks any pending Emit so
// that the goroutine can exit once the handle has been closed.
type EventSink struct {
	ch       chan Event
	done     chan struct{}
	shutdown sync.Once
}

// NewEventSink creates a sink whose channel buffers up to size events.
func NewEventSink(size int) *EventSink {
	return &EventSink{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// C returns the consuming side of the sink.
func (s *EventSink) C() <-chan Event {
	return s.ch
}

// Done is closed after Shutdown.
func (s *EventSink) Done() <-chan struct{} {
	return s.done
}

// Emit delivers ev, blocking while the buffer is full. It reports false
// if the sink was shut down before the event could be delivered.
func (s *EventSink) Emit(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.ch <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Shutdown stops delivery. It is safe to call more than once.
func (s *EventSink) Shutdown() {
	s.shutdown.Do(func() {
		close(s.done)
	})
}
