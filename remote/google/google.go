package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/agnivade/stt_relay/remote"
)

const (
	providerName    = "google"
	eventBufferSize = 16
)

// streamingRecognizeClient is a local interface that wraps the methods we need
// from speechpb.Speech_StreamingRecognizeClient to enable easier testing
type streamingRecognizeClient interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Config holds the recognition parameters sent at the start of every stream.
type Config struct {
	// Encoding is a speechpb.RecognitionConfig_AudioEncoding name, e.g. "linear16" or "webm_opus".
	Encoding       string
	SampleRate     int
	LanguageCode   string
	InterimResults bool
}

func (c Config) encoding() (speechpb.RecognitionConfig_AudioEncoding, error) {
	if c.Encoding == "" {
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, nil
	}
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(c.Encoding)]
	if !ok {
		return 0, fmt.Errorf("google: unsupported encoding %q", c.Encoding)
	}
	return speechpb.RecognitionConfig_AudioEncoding(v), nil
}

// NewClient creates a Speech client authenticated with an API key.
func NewClient(ctx context.Context, apiKey string) (*speech.Client, error) {
	if apiKey == "" {
		return nil, errors.New("google: api key is required")
	}
	return speech.NewClient(ctx, option.WithAPIKey(apiKey))
}

// Factory opens Google Speech streaming recognition sessions.
// Each response is handed to the relay encoded as protobuf JSON.
type Factory struct {
	newStream func(ctx context.Context) (streamingRecognizeClient, error)
	request   *speechpb.StreamingRecognizeRequest
}

// NewFactory creates a factory on top of an existing Speech client.
func NewFactory(client *speech.Client, config Config) (*Factory, error) {
	return newFactory(func(ctx context.Context) (streamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	}, config)
}

func newFactory(newStream func(ctx context.Context) (streamingRecognizeClient, error), config Config) (*Factory, error) {
	encoding, err := config.encoding()
	if err != nil {
		return nil, err
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.LanguageCode,
				},
				InterimResults: config.InterimResults,
			},
		},
	}

	return &Factory{
		newStream: newStream,
		request:   req,
	}, nil
}

// Name returns the name of the backend.
func (f *Factory) Name() string {
	return providerName
}

// Open starts a streaming recognition call in the background. The stream is
// reported open once the recognition config has been accepted for sending.
func (f *Factory) Open(ctx context.Context) remote.Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		events: remote.NewEventSink(eventBufferSize),
		cancel: cancel,
	}
	go h.run(ctx, f)
	return h
}

// Handle is one streaming recognition call.
type Handle struct {
	events *remote.EventSink
	cancel context.CancelFunc

	mu     sync.Mutex
	stream streamingRecognizeClient
	closed bool
}

func (h *Handle) run(ctx context.Context, f *Factory) {
	stream, err := f.newStream(ctx)
	if err != nil {
		h.fail(fmt.Errorf("start streaming recognize: %w", err))
		return
	}

	// Send initial configuration
	if err := stream.Send(f.request); err != nil {
		stream.CloseSend()
		h.fail(fmt.Errorf("send recognition config: %w", err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		stream.CloseSend()
		return
	}
	h.stream = stream
	h.mu.Unlock()

	if !h.events.Emit(remote.Event{Type: remote.EventOpen}) {
		return
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			h.events.Emit(remote.Event{Type: remote.EventClose})
			return
		}
		if err != nil {
			h.fail(fmt.Errorf("receive recognition results: %w", err))
			return
		}

		data, err := protojson.Marshal(resp)
		if err != nil {
			h.fail(fmt.Errorf("encode recognition results: %w", err))
			return
		}
		if !h.events.Emit(remote.Event{Type: remote.EventMessage, Data: data}) {
			return
		}
	}
}

func (h *Handle) fail(err error) {
	h.events.Emit(remote.Event{Type: remote.EventError, Err: err})
	h.events.Emit(remote.Event{Type: remote.EventClose})
}

func (h *Handle) openStream() (streamingRecognizeClient, error) {
	if h.closed {
		return nil, remote.ErrClosed
	}
	if h.stream == nil {
		return nil, remote.ErrNotOpen
	}
	return h.stream, nil
}

// Events returns the call's event channel.
func (h *Handle) Events() <-chan remote.Event {
	return h.events.C()
}

// Send sends audio data to the Google Speech stream.
func (h *Handle) Send(audio []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream, err := h.openStream()
	if err != nil {
		return err
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	}
	return stream.Send(req)
}

// Finalize half-closes the stream; Google returns the remaining results and
// then ends the call.
func (h *Handle) Finalize() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream, err := h.openStream()
	if err != nil {
		return err
	}
	return stream.CloseSend()
}

// Close cancels the call.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.events.Shutdown()
	h.cancel()
	return nil
}
