package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agnivade/stt_relay/remote"
)

// createTestHandle creates a handle whose pump is fed directly through the channel handler
func createTestHandle() (*SDKHandle, *ChannelHandler, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	channelHandler := NewChannelHandler()
	h := &SDKHandle{
		events:         remote.NewEventSink(eventBufferSize),
		channelHandler: channelHandler,
		cancel:         cancel,
	}
	go h.pump(ctx)
	return h, channelHandler, cancel
}

func TestNewSDKFactory_MissingAPIKey(t *testing.T) {
	_, err := NewSDKFactory(Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSDKFactory_OpenDialsOnce(t *testing.T) {
	var dials atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	t.Setenv("DEEPGRAM_HOST", "ws://"+strings.TrimPrefix(server.URL, "http://"))

	f, err := NewSDKFactory(Options{APIKey: "key", Model: "nova-2", Encoding: "opus"})
	require.NoError(t, err)

	h := f.Open(context.Background())
	defer h.Close()

	select {
	case ev := <-h.Events():
		require.Equal(t, remote.EventError, ev.Type)
		assert.Error(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("no error event after a refused connection")
	}

	ev := nextEvent(t, h)
	assert.Equal(t, remote.EventClose, ev.Type)
	assert.Equal(t, int32(1), dials.Load())
}

func TestSDKFactory_TranscriptionOptions(t *testing.T) {
	f := &SDKFactory{opts: Options{
		APIKey:         "key",
		Model:          "nova-2",
		Language:       "en-US",
		Encoding:       "opus",
		Channels:       1,
		SampleRate:     48000,
		Punctuate:      true,
		InterimResults: true,
	}}

	assert.Equal(t, "deepgram-sdk", f.Name())

	cOptions := f.clientOptions()
	assert.Equal(t, "key", cOptions.APIKey)
	assert.True(t, cOptions.EnableKeepAlive)

	tOptions := f.transcriptionOptions()
	assert.Equal(t, "nova-2", tOptions.Model)
	assert.Equal(t, "en-US", tOptions.Language)
	assert.Equal(t, "opus", tOptions.Encoding)
	assert.Equal(t, 1, tOptions.Channels)
	assert.Equal(t, 48000, tOptions.SampleRate)
	assert.True(t, tOptions.Punctuate)
	assert.True(t, tOptions.InterimResults)
}

func TestSDKHandle_PumpOpenAndMessage(t *testing.T) {
	h, channelHandler, cancel := createTestHandle()
	defer cancel()

	channelHandler.openChan <- &api.OpenResponse{}
	ev := nextEvent(t, h)
	assert.Equal(t, remote.EventOpen, ev.Type)

	msg := &api.MessageResponse{
		IsFinal: true,
		Channel: api.Channel{
			Alternatives: []api.Alternative{
				{
					Transcript: "hello world",
					Confidence: 0.95,
				},
			},
		},
	}
	channelHandler.messageChan <- msg

	ev = nextEvent(t, h)
	require.Equal(t, remote.EventMessage, ev.Type)

	var decoded api.MessageResponse
	require.NoError(t, json.Unmarshal(ev.Data, &decoded))
	assert.True(t, decoded.IsFinal)
	require.Len(t, decoded.Channel.Alternatives, 1)
	assert.Equal(t, "hello world", decoded.Channel.Alternatives[0].Transcript)
}

func TestSDKHandle_PumpForwardsUnhandledVerbatim(t *testing.T) {
	h, channelHandler, cancel := createTestHandle()
	defer cancel()

	raw := []byte(`{"type":"SomethingNew","value":42}`)
	channelHandler.unhandledChan <- &raw

	ev := nextEvent(t, h)
	require.Equal(t, remote.EventMessage, ev.Type)
	assert.Equal(t, raw, ev.Data)
}

func TestSDKHandle_PumpErrorAndClose(t *testing.T) {
	h, channelHandler, cancel := createTestHandle()
	defer cancel()

	channelHandler.errorChan <- &api.ErrorResponse{
		Type:        "error",
		Description: "test error",
	}

	ev := nextEvent(t, h)
	require.Equal(t, remote.EventError, ev.Type)
	assert.Contains(t, ev.Err.Error(), "test error")

	channelHandler.closeChan <- &api.CloseResponse{}
	assert.Equal(t, remote.EventClose, nextEvent(t, h).Type)
}

func TestSDKHandle_PumpStopsOnCancel(t *testing.T) {
	h, channelHandler, cancel := createTestHandle()
	cancel()

	// Give the pump time to observe cancellation.
	time.Sleep(20 * time.Millisecond)
	channelHandler.openChan <- &api.OpenResponse{}

	select {
	case ev := <-h.Events():
		t.Fatalf("unexpected event after cancel: %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSDKHandle_Send(t *testing.T) {
	tests := []struct {
		name        string
		audioData   []byte
		setupMock   func(*mockdgWriter)
		expectedErr error
	}{
		{
			name:      "successful send",
			audioData: []byte("test audio data"),
			setupMock: func(m *mockdgWriter) {
				m.EXPECT().Write([]byte("test audio data")).Return(len("test audio data"), nil)
			},
		},
		{
			name:      "write error",
			audioData: []byte("test audio data"),
			setupMock: func(m *mockdgWriter) {
				m.EXPECT().Write([]byte("test audio data")).Return(0, errors.New("write failed"))
			},
			expectedErr: errors.New("write failed"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := newMockdgWriter(t)
			tt.setupMock(mockClient)

			h := &SDKHandle{
				events: remote.NewEventSink(1),
				cancel: func() {},
				client: mockClient,
			}

			err := h.Send(tt.audioData)
			if tt.expectedErr != nil {
				assert.EqualError(t, err, tt.expectedErr.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSDKHandle_NotOpen(t *testing.T) {
	h := &SDKHandle{
		events: remote.NewEventSink(1),
		cancel: func() {},
	}

	assert.ErrorIs(t, h.Send([]byte("audio")), remote.ErrNotOpen)
	assert.ErrorIs(t, h.Finalize(), remote.ErrNotOpen)
}

func TestSDKHandle_Close(t *testing.T) {
	mockClient := newMockdgWriter(t)
	mockClient.EXPECT().Stop().Return().Once()

	h := &SDKHandle{
		events: remote.NewEventSink(1),
		cancel: func() {},
		client: mockClient,
	}

	require.NoError(t, h.Finalize())
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.ErrorIs(t, h.Send([]byte("audio")), remote.ErrClosed)
	assert.ErrorIs(t, h.Finalize(), remote.ErrClosed)
}

func TestSDKHandle_AttachAfterClose(t *testing.T) {
	h := &SDKHandle{
		events: remote.NewEventSink(1),
		cancel: func() {},
	}
	require.NoError(t, h.Close())

	mockClient := newMockdgWriter(t)
	assert.False(t, h.attach(mockClient))
	assert.Nil(t, h.client)
}

func TestChannelHandler_InterfaceMethods(t *testing.T) {
	handler := NewChannelHandler()

	assert.Equal(t, &handler.openChan, handler.GetOpen()[0])
	assert.Equal(t, &handler.messageChan, handler.GetMessage()[0])
	assert.Equal(t, &handler.metadataChan, handler.GetMetadata()[0])
	assert.Equal(t, &handler.speechStartedChan, handler.GetSpeechStarted()[0])
	assert.Equal(t, &handler.utteranceEndChan, handler.GetUtteranceEnd()[0])
	assert.Equal(t, &handler.closeChan, handler.GetClose()[0])
	assert.Equal(t, &handler.errorChan, handler.GetError()[0])
	assert.Equal(t, &handler.unhandledChan, handler.GetUnhandled()[0])
}
