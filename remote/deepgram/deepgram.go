package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agnivade/stt_relay/remote"
)

const (
	providerName = "deepgram"

	// DefaultURL is Deepgram's live transcription endpoint.
	DefaultURL = "wss://api.deepgram.com/v1/listen"

	eventBufferSize = 16
	closeWriteWait  = time.Second
)

// ErrMissingAPIKey is returned when a factory is constructed without credentials.
var ErrMissingAPIKey = errors.New("deepgram: api key is required")

// Options configures the live transcription stream. They are fixed for the
// lifetime of a factory.
type Options struct {
	URL            string
	APIKey         string
	Model          string
	Language       string
	Encoding       string
	SampleRate     int
	Channels       int
	Punctuate      bool
	InterimResults bool

	// HandshakeTimeout bounds the WebSocket handshake. Zero means no timeout.
	HandshakeTimeout time.Duration
}

// listenURL builds the endpoint URL with the stream parameters as query values.
func (o Options) listenURL() (string, error) {
	base := o.URL
	if base == "" {
		base = DefaultURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("deepgram: invalid url %q: %w", base, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("deepgram: url %q must use ws or wss", base)
	}

	q := u.Query()
	if o.Model != "" {
		q.Set("model", o.Model)
	}
	if o.Language != "" {
		q.Set("language", o.Language)
	}
	if o.Encoding != "" {
		q.Set("encoding", o.Encoding)
	}
	if o.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(o.SampleRate))
	}
	if o.Channels > 0 {
		q.Set("channels", strconv.Itoa(o.Channels))
	}
	q.Set("punctuate", strconv.FormatBool(o.Punctuate))
	q.Set("interim_results", strconv.FormatBool(o.InterimResults))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Factory opens raw WebSocket connections to Deepgram. Messages received
// from Deepgram are passed on untouched.
type Factory struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
}

// NewFactory creates a factory for the given options.
func NewFactory(opts Options) (*Factory, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	listenURL, err := opts.listenURL()
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("Authorization", "Token "+opts.APIKey)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = opts.HandshakeTimeout

	return &Factory{
		url:    listenURL,
		header: header,
		dialer: &dialer,
	}, nil
}

// Name returns the name of the backend.
func (f *Factory) Name() string {
	return providerName
}

// Open starts dialing Deepgram in the background.
func (f *Factory) Open(ctx context.Context) remote.Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		events: remote.NewEventSink(eventBufferSize),
		cancel: cancel,
	}
	go h.run(ctx, f.dialer, f.url, f.header)
	return h
}

// Handle is one live WebSocket connection to Deepgram.
type Handle struct {
	events *remote.EventSink
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (h *Handle) run(ctx context.Context, dialer *websocket.Dialer, endpoint string, header http.Header) {
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		h.events.Emit(remote.Event{Type: remote.EventError, Err: fmt.Errorf("dial deepgram: %w", err)})
		h.events.Emit(remote.Event{Type: remote.EventClose})
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conn = conn
	h.mu.Unlock()

	if !h.events.Emit(remote.Event{Type: remote.EventOpen}) {
		return
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if h.isClosed() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.events.Emit(remote.Event{Type: remote.EventError, Err: fmt.Errorf("read deepgram: %w", err)})
			}
			h.events.Emit(remote.Event{Type: remote.EventClose})
			return
		}

		if !h.events.Emit(remote.Event{Type: remote.EventMessage, Data: message}) {
			return
		}
	}
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Events returns the connection's event channel.
func (h *Handle) Events() <-chan remote.Event {
	return h.events.C()
}

// Send writes one binary audio frame.
func (h *Handle) Send(audio []byte) error {
	return h.write(websocket.BinaryMessage, audio)
}

// Finalize sends the CloseStream control message.
func (h *Handle) Finalize() error {
	return h.write(websocket.TextMessage, remote.CloseStreamMessage)
}

func (h *Handle) write(messageType int, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return remote.ErrClosed
	}
	if h.conn == nil {
		return remote.ErrNotOpen
	}
	return h.conn.WriteMessage(messageType, data)
}

// Close aborts a pending dial or closes the open connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conn := h.conn
	h.mu.Unlock()

	h.cancel()
	h.events.Shutdown()

	if conn == nil {
		return nil
	}

	// Best effort; the peer may already be gone.
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteWait))
	return conn.Close()
}
