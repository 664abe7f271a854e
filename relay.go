package stt_relay

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agnivade/stt_relay/metrics"
	"github.com/agnivade/stt_relay/remote"
)

// State is the lifecycle state of a relay session.
type State int

const (
	// StateIdle means no audio has been received and no remote connection exists.
	StateIdle State = iota
	// StateConnecting means a remote connection is being established and
	// frames are queued.
	StateConnecting
	// StateStreaming means the remote connection is open and frames pass through.
	StateStreaming
	// StateDetached means the remote connection failed or closed. Frames are dropped.
	StateDetached
	// StateClosed means the producer has gone away.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDetached:
		return "detached"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Producer is the connection audio comes from and transcripts go back to.
type Producer interface {
	WriteText(data []byte) error
}

// RelayOptions bounds a session while its remote connection is opening.
type RelayOptions struct {
	ConnectTimeout   time.Duration // 0 disables
	MaxPendingFrames int           // 0 means unbounded
}

// Relay pairs one producer with at most one remote connection. A Relay is
// not safe for concurrent use; a single goroutine must own it and feed it
// producer frames, remote events and connect timeouts.
type Relay struct {
	ctx      context.Context
	producer Producer
	factory  remote.Factory
	log      *zap.Logger
	metrics  *metrics.Metrics
	opts     RelayOptions

	state   State
	handle  remote.Handle
	events  <-chan remote.Event
	pending [][]byte
	timer   *time.Timer
}

// NewRelay creates an idle session for a newly connected producer. No
// remote connection is opened until the first binary frame arrives.
func NewRelay(ctx context.Context, producer Producer, factory remote.Factory, logger *zap.Logger, m *metrics.Metrics, opts RelayOptions) *Relay {
	return &Relay{
		ctx:      ctx,
		producer: producer,
		factory:  factory,
		log:      logger,
		metrics:  m,
		opts:     opts,
		state:    StateIdle,
	}
}

// State returns the current session state.
func (r *Relay) State() State {
	return r.state
}

// RemoteEvents returns the event channel of the current remote connection,
// or nil when there is none.
func (r *Relay) RemoteEvents() <-chan remote.Event {
	return r.events
}

// ConnectTimeout fires when the remote connection took too long to open.
// It returns nil when no timer is armed.
func (r *Relay) ConnectTimeout() <-chan time.Time {
	if r.timer == nil {
		return nil
	}
	return r.timer.C
}

// HandleFrame processes one frame read from the producer. Only binary
// frames carry audio; everything else is ignored.
func (r *Relay) HandleFrame(messageType int, data []byte) {
	if messageType != websocket.BinaryMessage {
		r.log.Debug("Ignoring non-binary producer frame", zap.Int("message_type", messageType))
		return
	}
	r.metrics.RecordFrameReceived()

	switch r.state {
	case StateIdle:
		r.open()
		r.enqueue(data)
	case StateConnecting:
		r.enqueue(data)
	case StateStreaming:
		r.send(data)
	default:
		r.metrics.RecordFramesDropped(metrics.DropDetached, 1)
	}
}

// HandleRemoteEvent processes an event from the current remote connection.
func (r *Relay) HandleRemoteEvent(ev remote.Event) {
	if r.handle == nil {
		return
	}

	switch ev.Type {
	case remote.EventOpen:
		if r.state != StateConnecting {
			return
		}
		r.state = StateStreaming
		r.stopTimer()
		r.flush()
	case remote.EventMessage:
		if err := r.producer.WriteText(ev.Data); err != nil {
			r.log.Warn("Failed to forward transcript to producer", zap.Error(err))
			return
		}
		r.metrics.RecordMessageForwarded()
	case remote.EventError:
		r.log.Error("Remote connection error", zap.Error(ev.Err), zap.Stringer("state", r.state))
		r.metrics.RecordRemoteError(r.factory.Name())
		r.detach(metrics.ReasonRemoteError)
	case remote.EventClose:
		r.log.Info("Remote connection closed", zap.Stringer("state", r.state))
		r.detach(metrics.ReasonRemoteClose)
	}
}

// HandleConnectTimeout detaches a session whose remote connection did not
// open in time.
func (r *Relay) HandleConnectTimeout() {
	if r.state != StateConnecting {
		return
	}
	r.log.Warn("Remote connection did not open in time",
		zap.Duration("timeout", r.opts.ConnectTimeout),
		zap.Int("pending_frames", len(r.pending)))
	r.detach(metrics.ReasonConnectTimeout)
}

// HandleProducerError logs a transport error on the producer connection.
// The caller is expected to call Disconnect afterwards.
func (r *Relay) HandleProducerError(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) || errors.Is(err, net.ErrClosed) {
		r.log.Debug("Producer connection closed", zap.Error(err))
		return
	}
	r.log.Error("Producer connection error", zap.Error(err))
}

// Disconnect ends the session. A streaming remote connection is sent the
// end-of-stream marker before being closed. Calling Disconnect more than
// once has no effect.
func (r *Relay) Disconnect() {
	if r.state == StateClosed {
		return
	}

	switch r.state {
	case StateStreaming:
		if err := r.handle.Finalize(); err != nil {
			r.log.Warn("Failed to finalize remote stream", zap.Error(err))
		}
		r.closeHandle()
	case StateConnecting:
		r.closeHandle()
	}

	r.discardPending()
	r.stopTimer()
	r.state = StateClosed
	r.log.Debug("Session closed")
}

func (r *Relay) open() {
	r.handle = r.factory.Open(r.ctx)
	r.events = r.handle.Events()
	r.state = StateConnecting
	r.metrics.RecordRemoteConnect(r.factory.Name())
	if r.opts.ConnectTimeout > 0 {
		r.timer = time.NewTimer(r.opts.ConnectTimeout)
	}
	r.log.Info("Opening remote connection")
}

func (r *Relay) enqueue(data []byte) {
	r.pending = append(r.pending, data)
	r.metrics.RecordFrameQueued()

	if r.opts.MaxPendingFrames > 0 && len(r.pending) > r.opts.MaxPendingFrames {
		r.log.Warn("Pending frame limit exceeded", zap.Int("limit", r.opts.MaxPendingFrames))
		r.detach(metrics.ReasonQueueFull)
	}
}

func (r *Relay) flush() {
	n := len(r.pending)
	for _, data := range r.pending {
		r.send(data)
	}
	r.pending = nil
	r.metrics.RecordFlush(n)
	r.log.Info("Remote connection open", zap.Int("flushed_frames", n))
}

func (r *Relay) send(data []byte) {
	if err := r.handle.Send(data); err != nil {
		r.log.Warn("Failed to send audio to remote", zap.Error(err))
		r.metrics.RecordFramesDropped(metrics.DropSend, 1)
		return
	}
	r.metrics.RecordFrameForwarded()
}

// detach drops the remote connection without reconnecting.
func (r *Relay) detach(reason string) {
	if r.handle == nil {
		return
	}
	r.closeHandle()
	r.discardPending()
	r.stopTimer()
	r.state = StateDetached
	r.metrics.RecordDetach(reason)
	r.log.Info("Session detached from remote", zap.String("reason", reason))
}

func (r *Relay) closeHandle() {
	if err := r.handle.Close(); err != nil {
		r.log.Warn("Failed to close remote connection", zap.Error(err))
	}
	r.handle = nil
	r.events = nil
}

func (r *Relay) discardPending() {
	r.metrics.RecordFramesDropped(metrics.DropDiscarded, len(r.pending))
	r.pending = nil
}

func (r *Relay) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
