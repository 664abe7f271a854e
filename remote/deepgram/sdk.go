package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/agnivade/stt_relay/remote"
)

const sdkProviderName = "deepgram-sdk"

// dgWriter is a local interface that wraps the methods we need
// from listenv1ws.WSChannel to enable easier testing
type dgWriter interface {
	io.Writer
	Stop()
}

// ChannelHandler implements the LiveMessageChan interface for receiving Deepgram messages
type ChannelHandler struct {
	openChan          chan *api.OpenResponse
	messageChan       chan *api.MessageResponse
	metadataChan      chan *api.MetadataResponse
	speechStartedChan chan *api.SpeechStartedResponse
	utteranceEndChan  chan *api.UtteranceEndResponse
	closeChan         chan *api.CloseResponse
	errorChan         chan *api.ErrorResponse
	unhandledChan     chan *[]byte
}

// NewChannelHandler creates a new handler with initialized channels
func NewChannelHandler() *ChannelHandler {
	return &ChannelHandler{
		openChan:          make(chan *api.OpenResponse, 1),
		messageChan:       make(chan *api.MessageResponse, 10),
		metadataChan:      make(chan *api.MetadataResponse, 1),
		speechStartedChan: make(chan *api.SpeechStartedResponse, 1),
		utteranceEndChan:  make(chan *api.UtteranceEndResponse, 1),
		closeChan:         make(chan *api.CloseResponse, 1),
		errorChan:         make(chan *api.ErrorResponse, 1),
		unhandledChan:     make(chan *[]byte, 1),
	}
}

// GetOpen returns slice of channels for open events
func (ch *ChannelHandler) GetOpen() []*chan *api.OpenResponse {
	return []*chan *api.OpenResponse{&ch.openChan}
}

// GetMessage returns slice of channels for message events
func (ch *ChannelHandler) GetMessage() []*chan *api.MessageResponse {
	return []*chan *api.MessageResponse{&ch.messageChan}
}

// GetMetadata returns slice of channels for metadata events
func (ch *ChannelHandler) GetMetadata() []*chan *api.MetadataResponse {
	return []*chan *api.MetadataResponse{&ch.metadataChan}
}

// GetSpeechStarted returns slice of channels for speech started events
func (ch *ChannelHandler) GetSpeechStarted() []*chan *api.SpeechStartedResponse {
	return []*chan *api.SpeechStartedResponse{&ch.speechStartedChan}
}

// GetUtteranceEnd returns slice of channels for utterance end events
func (ch *ChannelHandler) GetUtteranceEnd() []*chan *api.UtteranceEndResponse {
	return []*chan *api.UtteranceEndResponse{&ch.utteranceEndChan}
}

// GetClose returns slice of channels for close events
func (ch *ChannelHandler) GetClose() []*chan *api.CloseResponse {
	return []*chan *api.CloseResponse{&ch.closeChan}
}

// GetError returns slice of channels for error events
func (ch *ChannelHandler) GetError() []*chan *api.ErrorResponse {
	return []*chan *api.ErrorResponse{&ch.errorChan}
}

// GetUnhandled returns slice of channels for unhandled events
func (ch *ChannelHandler) GetUnhandled() []*chan *[]byte {
	return []*chan *[]byte{&ch.unhandledChan}
}

// SDKFactory opens Deepgram connections through the official Go SDK.
//
// The SDK decodes every message into typed responses, so the payloads handed
// to the relay are re-encoded JSON: equivalent to what Deepgram sent, but not
// byte-for-byte identical. Use Factory when exact pass-through matters.
type SDKFactory struct {
	opts Options
}

// NewSDKFactory creates a SDK backed factory with the given options.
func NewSDKFactory(opts Options) (*SDKFactory, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client.InitWithDefault()

	return &SDKFactory{
		opts: opts,
	}, nil
}

// Name returns the name of the backend.
func (f *SDKFactory) Name() string {
	return sdkProviderName
}

// clientOptions always targets the SDK's default host; Options.URL only
// applies to the raw Factory.
func (f *SDKFactory) clientOptions() *interfaces.ClientOptions {
	return &interfaces.ClientOptions{
		APIKey:          f.opts.APIKey,
		EnableKeepAlive: true,
	}
}

func (f *SDKFactory) transcriptionOptions() *interfaces.LiveTranscriptionOptions {
	return &interfaces.LiveTranscriptionOptions{
		Model:          f.opts.Model,
		Language:       f.opts.Language,
		Punctuate:      f.opts.Punctuate,
		Encoding:       f.opts.Encoding,
		Channels:       f.opts.Channels,
		SampleRate:     f.opts.SampleRate,
		InterimResults: f.opts.InterimResults,
	}
}

// Open connects in the background and reports readiness on the handle.
func (f *SDKFactory) Open(ctx context.Context) remote.Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &SDKHandle{
		events:         remote.NewEventSink(eventBufferSize),
		channelHandler: NewChannelHandler(),
		cancel:         cancel,
	}

	go func() {
		// Create Deepgram WebSocket client using channels
		dgClient, err := client.NewWSUsingChan(ctx, "", f.clientOptions(), f.transcriptionOptions(), h.channelHandler)
		if err != nil {
			h.fail(fmt.Errorf("create deepgram client: %w", err))
			return
		}

		// A single attempt. The count also caps the SDK's own redials.
		if success := dgClient.ConnectWithCancel(ctx, cancel, 1); !success {
			h.fail(errors.New("failed to connect to deepgram"))
			return
		}

		if !h.attach(dgClient) {
			dgClient.Stop()
			return
		}

		h.pump(ctx)
	}()

	return h
}

// SDKHandle is one Deepgram SDK session.
type SDKHandle struct {
	events         *remote.EventSink
	channelHandler *ChannelHandler
	cancel         context.CancelFunc

	mu     sync.Mutex
	client dgWriter
	closed bool
}

func (h *SDKHandle) fail(err error) {
	h.events.Emit(remote.Event{Type: remote.EventError, Err: err})
	h.events.Emit(remote.Event{Type: remote.EventClose})
}

// attach stores the connected client. It reports false if the handle was
// closed while connecting.
func (h *SDKHandle) attach(c dgWriter) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.client = c
	return true
}

// pump translates SDK callbacks into relay events until the stream closes
// or the handle is closed.
func (h *SDKHandle) pump(ctx context.Context) {
	for {
		var ev remote.Event

		select {
		case <-h.channelHandler.openChan:
			ev = remote.Event{Type: remote.EventOpen}
		case msg := <-h.channelHandler.messageChan:
			if msg == nil {
				continue
			}
			ev = h.encode(msg)
		case msg := <-h.channelHandler.metadataChan:
			ev = h.encode(msg)
		case msg := <-h.channelHandler.speechStartedChan:
			ev = h.encode(msg)
		case msg := <-h.channelHandler.utteranceEndChan:
			ev = h.encode(msg)
		case raw := <-h.channelHandler.unhandledChan:
			if raw == nil {
				continue
			}
			ev = remote.Event{Type: remote.EventMessage, Data: *raw}
		case e := <-h.channelHandler.errorChan:
			if e == nil {
				continue
			}
			ev = remote.Event{Type: remote.EventError, Err: fmt.Errorf("deepgram: %s", e.Description)}
		case <-h.channelHandler.closeChan:
			h.events.Emit(remote.Event{Type: remote.EventClose})
			return
		case <-ctx.Done():
			return
		}

		if !h.events.Emit(ev) {
			return
		}
	}
}

func (h *SDKHandle) encode(msg any) remote.Event {
	data, err := json.Marshal(msg)
	if err != nil {
		return remote.Event{Type: remote.EventError, Err: fmt.Errorf("encode deepgram message: %w", err)}
	}
	return remote.Event{Type: remote.EventMessage, Data: data}
}

// Events returns the session's event channel.
func (h *SDKHandle) Events() <-chan remote.Event {
	return h.events.C()
}

// Send writes audio data to the Deepgram stream.
func (h *SDKHandle) Send(audio []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return remote.ErrClosed
	}
	if h.client == nil {
		return remote.ErrNotOpen
	}
	_, err := h.client.Write(audio)
	return err
}

// Finalize is satisfied by Close: the SDK always sends CloseStream when the
// client is stopped.
func (h *SDKHandle) Finalize() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return remote.ErrClosed
	}
	if h.client == nil {
		return remote.ErrNotOpen
	}
	return nil
}

// Close stops the Deepgram client.
func (h *SDKHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	c := h.client
	h.mu.Unlock()

	h.cancel()
	h.events.Shutdown()

	if c != nil {
		c.Stop()
	}

	// Closing the channels manually leads to race conditions because
	// the deepgram client still tries to send any in-flight messages to those channels.
	return nil
}
