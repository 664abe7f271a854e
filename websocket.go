package stt_relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agnivade/stt_relay/remote"
)

const (
	// Time allowed to write a message to the producer.
	writeWait = 10 * time.Second

	// Frames read ahead of the event loop.
	frameBufferSize = 32

	// Transcripts queued for the producer.
	sendBufferSize = 256
)

var errSendBufferFull = errors.New("producer send buffer full")

type frame struct {
	messageType int
	data        []byte
}

// WebConn is one producer connection. Its event loop owns the session's
// Relay; a reader goroutine feeds it producer frames.
type WebConn struct {
	id     string
	conn   *websocket.Conn
	log    *zap.Logger
	relay  *Relay
	cancel context.CancelFunc

	frames  chan frame
	readErr error

	send       chan []byte
	writerDone chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}

	wc := s.newWebConn(conn)
	if !s.addConn(wc) {
		wc.cancel()
		conn.Close()
		return
	}
	defer s.removeConn(wc)

	s.metrics.SessionStarted()
	defer s.metrics.SessionEnded()

	wc.log.Info("Producer connected", zap.String("remote_addr", r.RemoteAddr))
	wc.Start()
	wc.log.Info("Producer disconnected")
}

func (s *Server) newWebConn(conn *websocket.Conn) *WebConn {
	id := uuid.NewString()
	logger := s.log.With(zap.String("session_id", id), zap.String("remote", s.factory.Name()))

	// Remote connections outlive the upgrade request, so they get their own context.
	ctx, cancel := context.WithCancel(context.Background())

	wc := &WebConn{
		id:     id,
		conn:   conn,
		log:    logger,
		cancel: cancel,
		frames:     make(chan frame, frameBufferSize),
		send:       make(chan []byte, sendBufferSize),
		writerDone: make(chan struct{}),
		stop:       make(chan struct{}),
	}
	wc.relay = NewRelay(ctx, wc, s.factory, logger, s.metrics, s.relayOpts)
	return wc
}

// ID returns the session id.
func (wc *WebConn) ID() string {
	return wc.id
}

// WriteText queues a text frame for the producer without blocking. Only the
// event loop calls it.
func (wc *WebConn) WriteText(data []byte) error {
	select {
	case wc.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Start runs the session until the producer disconnects or Stop is called.
func (wc *WebConn) Start() {
	defer wc.cancel()

	wc.wg.Add(2)
	go func() {
		defer wc.wg.Done()
		wc.reader()
	}()
	go func() {
		defer wc.wg.Done()
		defer close(wc.writerDone)
		wc.writer()
	}()

	wc.loop()

	// Let queued transcripts go out before the close frame.
	close(wc.send)
	<-wc.writerDone

	select {
	case <-wc.stop:
		wc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
	default:
	}
	wc.conn.Close()
	wc.wg.Wait()
}

// Stop asks the session to end. It is safe to call from any goroutine.
func (wc *WebConn) Stop() {
	wc.stopOnce.Do(func() {
		close(wc.stop)
	})
}

func (wc *WebConn) reader() {
	defer close(wc.frames)
	for {
		messageType, data, err := wc.conn.ReadMessage()
		if err != nil {
			wc.readErr = err
			return
		}

		select {
		case wc.frames <- frame{messageType: messageType, data: data}:
		case <-wc.stop:
			return
		}
	}
}

func (wc *WebConn) writer() {
	for data := range wc.send {
		wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := wc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			wc.log.Warn("WebSocket write error", zap.Error(err))
			// Unblocks the reader so the session ends.
			wc.conn.Close()
			return
		}
	}
}

func (wc *WebConn) loop() {
	defer wc.relay.Disconnect()

	for {
		select {
		case f, ok := <-wc.frames:
			if !ok {
				if wc.readErr != nil {
					wc.relay.HandleProducerError(wc.readErr)
				}
				return
			}
			wc.relay.HandleFrame(f.messageType, f.data)
		case ev, ok := <-wc.relay.RemoteEvents():
			if !ok {
				ev = remote.Event{Type: remote.EventClose}
			}
			wc.relay.HandleRemoteEvent(ev)
		case <-wc.relay.ConnectTimeout():
			wc.relay.HandleConnectTimeout()
		case <-wc.stop:
			return
		}
	}
}
