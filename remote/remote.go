package remote

import (
	"context"
	"errors"
)

// CloseStreamMessage is the control message asking the transcription backend
// to flush any remaining results and end the stream.
var CloseStreamMessage = []byte(`{"type":"CloseStream"}`)

var (
	// ErrNotOpen is returned by Send and Finalize before the handle has reported EventOpen.
	ErrNotOpen = errors.New("remote connection is not open")
	// ErrClosed is returned by Send and Finalize after Close.
	ErrClosed = errors.New("remote connection is closed")
)

// Factory opens streaming connections to a transcription backend.
// Backend configuration (endpoint, codec parameters, credentials) is fixed
// when the factory is constructed and reused for every Open call.
type Factory interface {
	// Name returns the name of the backend, used for logging and metrics.
	Name() string

	// Open starts connecting and returns immediately. Readiness is reported
	// asynchronously by an EventOpen on the handle's event channel. A failed
	// connection attempt is reported as EventError followed by EventClose.
	// Open never retries.
	Open(ctx context.Context) Handle
}

// Handle is a single streaming connection to a transcription backend.
// Send, Finalize and Close must be called from one goroutine.
type Handle interface {
	// Events returns the channel on which the connection reports its
	// lifecycle and the messages received from the backend.
	// The channel is never closed; EventClose is the last event delivered.
	Events() <-chan Event

	// Send transmits one binary audio frame.
	Send(audio []byte) error

	// Finalize sends the backend's end-of-stream marker.
	Finalize() error

	// Close tears down the connection and releases resources. It is safe to
	// call more than once. No events are delivered after Close returns.
	Close() error
}

// EventType identifies the kind of Event.
type EventType int

const (
	EventOpen EventType = iota + 1
	EventMessage
	EventError
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is something that happened on a remote connection.
type Event struct {
	Type EventType
	// Data is the raw message payload for EventMessage.
	Data []byte
	// Err is set for EventError.
	Err error
}
